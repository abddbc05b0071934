package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeFiles(md, run)
	w.writeSkipped(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Mirror Report")
	md.PlainText("")

	rows := [][]string{
		{"Page", "`" + run.URL + "`"},
		{"Output", "`" + run.OutputDir + "`"},
		{"Run ID", "`" + run.ID + "`"},
		{"Depth", strconv.Itoa(run.Depth)},
		{"Started", run.StartedAt.Format(dateLayout)},
	}
	if d := run.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}
	rows = append(rows, []string{"Status", w.getStatusText(run)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case run.Cancelled:
		md.Warningf("The run was cancelled after %d step(s); the mirror may be incomplete.", len(run.PerformedSteps))
		md.PlainText("")
	case run.Failed():
		md.Cautionf("The run failed: %s", run.ErrorMessage)
		md.PlainText("")
	}
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(run *model.Run) string {
	switch {
	case run.Cancelled:
		return "⚠️ Cancelled"
	case run.Failed():
		return "❌ Error - " + run.ErrorMessage
	default:
		return "✅ Complete"
	}
}

// writeFiles writes the per-bucket summary and a size chart.
func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, run *model.Run) {
	md.H2("Files")
	md.PlainText("")

	if len(run.Files) == 0 {
		md.PlainText("No files were written.")
		md.PlainText("")
		return
	}

	stats := bucketStats(run.Files)
	rows := make([][]string, 0, len(stats)+1)
	for _, s := range stats {
		rows = append(rows, []string{s.Label, strconv.Itoa(s.Files), formatBytes(s.Bytes)})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(len(run.Files)) + "**",
		"**" + formatBytes(run.BytesWritten()) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Bucket", "Files", "Size"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, stats)

	if n := anchorCount(run); n > 0 {
		md.Note(strconv.Itoa(n) + " same-origin anchor(s) were rewritten to local paths but not downloaded.")
		md.PlainText("")
	}

	w.writeFileList(md, run.Files)
}

// writePieChart writes a mermaid pie chart of bytes per bucket.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats []bucketStat) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Bytes per Bucket"),
		piechart.WithShowData(true),
	)

	for _, s := range stats {
		if s.Bytes > 0 {
			chart.LabelAndIntValue(s.Label, uint64(s.Bytes))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFileList writes every written file in a collapsible block.
func (w *MarkdownWriter) writeFileList(md *markdown.Markdown, files []model.WrittenFile) {
	rows := make([][]string, len(files))
	for i, f := range files {
		hash := f.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		if hash == "" {
			hash = "-"
		}
		rows[i] = []string{"`" + f.Path + "`", strconv.Itoa(f.Size), hash}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Path", "Bytes", "SHA-256"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSkipped writes skipped references grouped by kind.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, run *model.Run) {
	md.H2("Skipped References")
	md.PlainText("")

	if skippedCount(run) == 0 {
		md.Tip("Every reference was mirrored.")
		md.PlainText("")
		return
	}

	for _, g := range groupSkips(run.Result.Skipped) {
		md.PlainText("### " + kindLabel(g.Kind))
		md.PlainText("")

		rows := make([][]string, len(g.Skips))
		for i, s := range g.Skips {
			rows[i] = []string{"`" + truncateString(s.Reference, 60) + "`", truncateString(s.Reason, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Reference", "Reason"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pagemirror](https://github.com/nao1215/pagemirror)*")
}

// WriteHistory outputs stored runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(records []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Mirror History")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		status := "✅"
		if r.Failed() {
			status = "❌ " + truncateString(r.Error, 40)
		}
		rows[i] = []string{
			"`" + r.ID + "`",
			r.StartedAt.Format(dateLayout),
			r.URL,
			strconv.Itoa(r.FileCount),
			formatBytes(r.BytesWritten),
			strconv.Itoa(r.SkippedCount),
			status,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "URL", "Files", "Size", "Skipped", "Status"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
