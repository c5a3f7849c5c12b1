package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/cslbridge/internal/document"
)

// DocumentRenderer renders one document file
type DocumentRenderer interface {
	RenderFile(ctx context.Context, path string) (*document.Result, error)
}

// RenderResult is the outcome for one document of a batch
type RenderResult struct {
	Path   string
	Result *document.Result
	Error  error
}

// BatchRenderer renders independent documents concurrently. Each document
// gets its own session, so nothing is shared between jobs but the renderer.
type BatchRenderer struct {
	renderer    DocumentRenderer
	concurrency int
}

// NewBatchRenderer creates a batch renderer
func NewBatchRenderer(renderer DocumentRenderer, concurrency int) *BatchRenderer {
	return &BatchRenderer{
		renderer:    renderer,
		concurrency: concurrency,
	}
}

// RenderPaths renders every path and returns the results in input order
func (b *BatchRenderer) RenderPaths(ctx context.Context, paths []string) []*RenderResult {
	if len(paths) == 0 {
		return []*RenderResult{}
	}

	pool := NewPool[*document.Result](ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		path := path
		pool.Submit(func(ctx context.Context) (*document.Result, error) {
			return b.renderer.RenderFile(ctx, path)
		})
	}

	results := pool.Wait()

	out := make([]*RenderResult, len(results))
	for i, r := range results {
		out[i] = &RenderResult{Path: paths[r.Index], Result: r.Value, Error: r.Err}
	}
	return out
}

// RenderManifest reads document paths from a manifest file and renders them
func (b *BatchRenderer) RenderManifest(ctx context.Context, manifest string) ([]*RenderResult, error) {
	paths, err := ReadManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return b.RenderPaths(ctx, paths), nil
}

// ReadManifest reads document paths (one per line) from a file. Blank lines
// and # comments are skipped, duplicates dropped, and relative paths resolved
// against the manifest's directory.
func ReadManifest(manifest string) ([]string, error) {
	file, err := os.Open(manifest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(manifest)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
