// Package batch runs many documents through the shared pipeline concurrently.
// It sits at the edge of the module, above both the worker pool and the
// pipeline, and stands in for an external task queue in local runs.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/clarimed/clarimed/internal/pipeline"
	"github.com/clarimed/clarimed/internal/worker"
)

// Processor is the per-document pipeline entry point a batch run drives.
type Processor interface {
	Process(ctx context.Context, doc pipeline.Document, path string) *pipeline.Result
}

// DocumentJob schedules one document file on the pool.
type DocumentJob struct {
	Path      string
	Processor Processor
}

// Run processes the document and wraps the outcome for the pool.
func (j *DocumentJob) Run(ctx context.Context) worker.Result {
	doc := pipeline.Document{Filename: j.Path}
	result := j.Processor.Process(ctx, doc, j.Path)

	var err error
	if len(result.Errors) > 0 {
		err = fmt.Errorf("%s: %s", result.Errors[0].Code, result.Errors[0].Message)
	}
	return &DocumentResult{
		Path:   j.Path,
		Result: result,
		Error:  err,
	}
}

// DocumentResult pairs a document path with its processing outcome.
type DocumentResult struct {
	Path   string
	Result *pipeline.Result
	Error  error
}

// Err returns the first recorded processing error, nil on success.
func (r *DocumentResult) Err() error {
	return r.Error
}

// Runner processes document files concurrently through one shared pipeline.
type Runner struct {
	processor   Processor
	concurrency int
}

// NewRunner creates a batch runner with the given worker count.
func NewRunner(processor Processor, concurrency int) *Runner {
	return &Runner{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessPaths runs every document path through the pipeline concurrently.
func (r *Runner) ProcessPaths(ctx context.Context, paths []string) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	pool := worker.NewPool(r.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&DocumentJob{
			Path:      path,
			Processor: r.processor,
		})
	}

	results := pool.Drain()
	docResults := make([]*DocumentResult, len(results))
	for i, result := range results {
		docResults[i] = result.(*DocumentResult)
	}
	return docResults
}

// ProcessFile reads document paths from a manifest file and processes them
// concurrently.
func (r *Runner) ProcessFile(ctx context.Context, manifestPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return r.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a manifest, one per line.
// Blank lines and #-comments are skipped; duplicate paths are dropped.
func ReadPathsFromFile(manifestPath string) ([]string, error) {
	file, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return paths, nil
}
