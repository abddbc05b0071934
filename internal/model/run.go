package model

import (
	"time"

	"github.com/google/uuid"
)

// Output bucket names. They double as the sub-directory names on disk,
// except BucketRoot which maps to the output directory itself.
const (
	BucketRoot = ""
	BucketCSS  = "css"
	BucketSrc  = "src"
	BucketImg  = "img"
	BucketFont = "font"
)

// WrittenFile describes one file persisted by a run.
type WrittenFile struct {
	// Bucket is the sub-directory the file was written to.
	Bucket string `json:"bucket"`

	// Name is the local file name.
	Name string `json:"name"`

	// Path is the path on disk.
	Path string `json:"path"`

	// Size is the number of bytes written.
	Size int `json:"size"`

	// Hash is the hex SHA-256 of the written bytes.
	Hash string `json:"hash,omitempty"`
}

// Run is one mirror invocation from page fetch to persistence.
// Pipeline steps fill it in progressively.
type Run struct {
	// ID uniquely identifies the run in the history database.
	ID string `json:"id"`

	// URL is the page that was mirrored.
	URL string `json:"url"`

	// OutputDir is the directory the mirror was written to.
	OutputDir string `json:"output_dir"`

	// Depth is the @import recursion budget used for stylesheets.
	Depth int `json:"depth"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step completed. Zero while running.
	FinishedAt time.Time `json:"finished_at"`

	// Result is the extracted page. Nil if extraction failed.
	Result *PageResult `json:"result,omitempty"`

	// Files lists every file written to OutputDir.
	Files []WrittenFile `json:"files,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`

	// Cancelled is set when the context was cancelled mid-run.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error is the fatal error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string, for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates a run record with a fresh ID.
func NewRun(pageURL, outputDir string, depth int) *Run {
	return &Run{
		ID:             uuid.NewString(),
		URL:            pageURL,
		OutputDir:      outputDir,
		Depth:          depth,
		StartedAt:      time.Now(),
		Files:          make([]WrittenFile, 0),
		PerformedSteps: make([]string, 0),
	}
}

// Failed reports whether the run stopped on a fatal error.
func (r *Run) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// Duration returns how long the run took. It is zero until FinishedAt is set.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BytesWritten sums the size of every written file.
func (r *Run) BytesWritten() int64 {
	var total int64
	for _, f := range r.Files {
		total += int64(f.Size)
	}
	return total
}
