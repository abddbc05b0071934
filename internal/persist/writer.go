package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pagemirror/internal/model"
)

// IndexName is the file the rewritten page is written to.
const IndexName = "index.html"

// Default permissions for created directories and files.
const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

var (
	// ErrCreateDir is returned when an output directory cannot be created.
	ErrCreateDir = errors.New("failed to create output directory")

	// ErrWriteFile is returned when an output file cannot be written.
	ErrWriteFile = errors.New("failed to write output file")
)

// Writer persists page results to disk.
type Writer struct {
	concurrency int
	logger      *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithConcurrency sets how many files are written at once. Default is 8.
func WithConcurrency(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates a Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		concurrency: 8,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// entry is one file to write.
type entry struct {
	bucket  string
	name    string
	content []byte
}

// Write creates dir and its sub-directories and writes every file of
// result into them. It returns the written files in layout order.
func (w *Writer) Write(ctx context.Context, dir string, result *model.PageResult) ([]model.WrittenFile, error) {
	if result == nil {
		return nil, errors.New("nothing to write: result is nil")
	}

	for _, sub := range []string{"", model.BucketCSS, model.BucketSrc, model.BucketImg, model.BucketFont} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, dirMode); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCreateDir, path, err)
		}
	}

	entries := w.plan(result)
	files := make([]model.WrittenFile, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			path := filepath.Join(dir, e.bucket, e.name)
			if err := os.WriteFile(path, e.content, fileMode); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrWriteFile, path, err)
			}

			asset := model.BinaryAsset{Name: e.name, Content: e.content}
			files[i] = model.WrittenFile{
				Bucket: e.bucket,
				Name:   e.name,
				Path:   path,
				Size:   asset.Size(),
				Hash:   asset.Hash(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.logger.Debug("mirror written", "dir", dir, "files", len(files))
	return files, nil
}

// plan lists the files to write in layout order. When two entries share
// a path only the later one is kept, at the position of the earlier one.
func (w *Writer) plan(result *model.PageResult) []entry {
	var all []entry
	add := func(bucket, name string, content []byte) {
		if !safeName(name) {
			w.logger.Warn("refusing unsafe file name", "bucket", bucket, "name", name)
			return
		}
		all = append(all, entry{bucket: bucket, name: name, content: content})
	}

	add(model.BucketRoot, IndexName, []byte(result.Content))
	for _, a := range result.Stylesheets {
		add(model.BucketCSS, a.Name, []byte(a.Content))
	}
	for _, a := range result.Scripts {
		add(model.BucketSrc, a.Name, []byte(a.Content))
	}
	for _, a := range result.Images {
		add(model.BucketImg, a.Name, a.Content)
	}
	for _, a := range result.Fonts {
		add(model.BucketFont, a.Name, a.Content)
	}
	if result.Icon != nil {
		add(model.BucketRoot, result.Icon.Name, result.Icon.Content)
	}
	if result.ShortcutIcon != nil {
		add(model.BucketRoot, result.ShortcutIcon.Name, result.ShortcutIcon.Content)
	}

	index := make(map[string]int, len(all))
	planned := make([]entry, 0, len(all))
	for _, e := range all {
		key := e.bucket + "/" + e.name
		if i, ok := index[key]; ok {
			planned[i] = e
			continue
		}
		index[key] = len(planned)
		planned = append(planned, e)
	}
	return planned
}

// safeName reports whether name is a plain file name.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
