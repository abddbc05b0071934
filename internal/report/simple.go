package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/model"
)

// dateLayout is used for every timestamp in text and Markdown output.
const dateLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty sections are shown.
	showEmpty bool

	// verbose lists every written file and rewritten anchor.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeFiles(&sb, run)
	w.writeSkipped(&sb, run)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        PAGEMIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Page:       %s\n", run.URL)
	fmt.Fprintf(sb, "Output:     %s\n", run.OutputDir)
	fmt.Fprintf(sb, "Run ID:     %s\n", run.ID)
	fmt.Fprintf(sb, "Depth:      %d\n", run.Depth)
	fmt.Fprintf(sb, "Started:    %s\n", run.StartedAt.Format(dateLayout))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:   %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:     %s\n", runStatus(run))
	sb.WriteString("\n")
}

// writeFiles writes the per-bucket file summary.
func (w *SimpleWriter) writeFiles(sb *strings.Builder, run *model.Run) {
	if len(run.Files) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "FILES")

	for _, s := range bucketStats(run.Files) {
		if s.Files == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-14s %4d  %10s\n", s.Label+":", s.Files, formatBytes(s.Bytes))
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL: %d files, %s\n", len(run.Files), formatBytes(run.BytesWritten()))
	if n := anchorCount(run); n > 0 {
		fmt.Fprintf(sb, "  Anchors rewritten: %d\n", n)
	}
	sb.WriteString("\n")

	if !w.verbose {
		return
	}
	for _, f := range run.Files {
		fmt.Fprintf(sb, "  [+] %s (%s)\n", f.Path, formatBytes(int64(f.Size)))
	}
	if run.Result != nil {
		for _, a := range run.Result.Anchors {
			fmt.Fprintf(sb, "  [>] %s -> /%s\n", a.URL, a.Name)
		}
	}
	sb.WriteString("\n")
}

// writeSkipped writes skipped references grouped by kind.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, run *model.Run) {
	if skippedCount(run) == 0 {
		if w.showEmpty {
			writeSection(sb, "SKIPPED REFERENCES")
			sb.WriteString("  No skipped references\n\n")
		}
		return
	}

	writeSection(sb, "SKIPPED REFERENCES")

	for _, g := range groupSkips(run.Result.Skipped) {
		fmt.Fprintf(sb, "[%s]\n", kindLabel(g.Kind))
		for _, s := range g.Skips {
			fmt.Fprintf(sb, "  * %s\n", s.Reference)
			fmt.Fprintf(sb, "    Reason: %s\n", s.Reason)
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteHistory outputs stored runs as an aligned table, newest first.
func (w *SimpleWriter) WriteHistory(records []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(records) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-8s  %-19s  %5s  %10s  %7s  %s\n", "ID", "STARTED", "FILES", "SIZE", "SKIPPED", "URL")
	for _, r := range records {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		url := r.URL
		if r.Failed() {
			url += "  (failed: " + r.Error + ")"
		}
		fmt.Fprintf(&sb, "%-8s  %-19s  %5d  %10s  %7d  %s\n",
			id,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FileCount,
			formatBytes(r.BytesWritten),
			r.SkippedCount,
			url,
		)
	}

	return w.output.Write([]byte(sb.String()))
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
