package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pagemirror/internal/model"
)

// bucketStat aggregates the files written to one output bucket.
type bucketStat struct {
	Label string
	Files int
	Bytes int64
}

// bucketOrder is the display order of output buckets.
var bucketOrder = []struct {
	bucket string
	label  string
}{
	{model.BucketRoot, "Page & icons"},
	{model.BucketCSS, "Stylesheets"},
	{model.BucketSrc, "Scripts"},
	{model.BucketImg, "Images"},
	{model.BucketFont, "Fonts"},
}

// bucketStats groups written files by bucket, in display order.
func bucketStats(files []model.WrittenFile) []bucketStat {
	byBucket := make(map[string]*bucketStat, len(bucketOrder))
	stats := make([]bucketStat, len(bucketOrder))
	for i, b := range bucketOrder {
		stats[i].Label = b.label
		byBucket[b.bucket] = &stats[i]
	}

	for _, f := range files {
		s, ok := byBucket[f.Bucket]
		if !ok {
			continue
		}
		s.Files++
		s.Bytes += int64(f.Size)
	}
	return stats
}

// skipKindOrder is the order skipped references are grouped in.
var skipKindOrder = []model.ResourceKind{
	model.KindPage,
	model.KindIcon,
	model.KindShortcutIcon,
	model.KindStylesheet,
	model.KindFont,
	model.KindScript,
	model.KindImage,
	model.KindAnchor,
	model.KindInlineStyle,
}

// skipGroup holds the skipped references of one resource kind.
type skipGroup struct {
	Kind  model.ResourceKind
	Skips []model.Skip
}

// groupSkips groups skipped references by kind, keeping discovery order
// within a kind.
func groupSkips(skips []model.Skip) []skipGroup {
	groups := make([]skipGroup, 0)
	for _, kind := range skipKindOrder {
		var matched []model.Skip
		for _, s := range skips {
			if s.Kind == kind {
				matched = append(matched, s)
			}
		}
		if len(matched) > 0 {
			groups = append(groups, skipGroup{Kind: kind, Skips: matched})
		}
	}
	return groups
}

// kindLabel turns "shortcut_icon" into "Shortcut Icon".
func kindLabel(kind model.ResourceKind) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(kind), "_", " "))
}

// runStatus returns a one-line status for a run.
func runStatus(run *model.Run) string {
	switch {
	case run.Cancelled:
		return "Cancelled"
	case run.Failed():
		return "Error - " + run.ErrorMessage
	default:
		return "Complete"
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// skippedCount returns the number of skipped references of a run.
func skippedCount(run *model.Run) int {
	if run.Result == nil {
		return 0
	}
	return len(run.Result.Skipped)
}

// anchorCount returns the number of rewritten anchors of a run.
func anchorCount(run *model.Run) int {
	if run.Result == nil {
		return 0
	}
	return len(run.Result.Anchors)
}
