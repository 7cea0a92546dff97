package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clarimed/clarimed/internal/batch"
	"github.com/clarimed/clarimed/internal/pipeline"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchOutDir  string
)

// documentExtensions are the file types picked up when batching a directory.
var documentExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|manifest>",
	Short: "Process multiple clinical documents in parallel",
	Long: `Batch processes multiple documents concurrently:
- Accept a directory of documents or a manifest file (one path per line)
- Process documents in parallel with a configurable worker count
- AI backend calls stay rate limited across all workers
- Persist one result per document under the output directory

Example:
  clarimed batch ./inbox
  clarimed batch manifest.txt --concurrency 8 --output-dir ./results
  clarimed batch ./inbox --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&batchOutDir, "output-dir", "./clarimed-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")

	batchCmd.Flags().StringVar(&patientID, "patient", "unknown", "patient identifier for FHIR subject references")
	batchCmd.Flags().StringVar(&auditLog, "audit-log", "", "append audit events to this JSONL file")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
	batchCmd.Flags().BoolVar(&strictMode, "strict", false, "treat all validation issues as failures")
	batchCmd.Flags().StringVar(&primaryFlag, "primary", "", "primary AI backend (openai, anthropic)")
	batchCmd.Flags().StringVar(&secondaryFlag, "secondary", "", "secondary AI backend (openai, anthropic)")
	batchCmd.Flags().StringVar(&modelFlag, "model", "", "model name for the primary backend")
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg := loadConfig()
	applyBackendFlags(cfg)
	if noCache {
		cfg.Cache.Enabled = false
	}
	if strictMode {
		cfg.Validation.Strict = true
	}
	if concurrency > 0 {
		cfg.Concurrency.BatchWorkers = concurrency
	}

	paths, err := collectPaths(input)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents found in %s", input)
	}

	a, cleanup, err := buildApp(cfg, auditLog, batchOutDir)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(os.Stderr, "Processing %d documents with %d workers\n", len(paths), cfg.Concurrency.BatchWorkers)

	runner := batch.NewRunner(&batchAdapter{app: a}, cfg.Concurrency.BatchWorkers)
	results := runner.ProcessPaths(ctx, paths)
	a.alerts.Evaluate()

	successCount := 0
	reviewCount := 0
	failureCount := 0
	for _, result := range results {
		switch {
		case result.Error != nil || !result.Result.Success:
			failureCount++
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", result.Path, result.Error)
		case result.Result.Status == pipeline.StatusReview:
			reviewCount++
			fmt.Fprintf(os.Stderr, "review: %s (%d issues)\n", result.Path, len(result.Result.Issues))
		default:
			successCount++
			if verbose {
				fmt.Fprintf(os.Stderr, "completed: %s\n", result.Path)
			}
		}
	}

	stats := a.orchestrator.Session().Stats()
	fmt.Fprintf(os.Stderr, "\nBatch complete: %d completed, %d review, %d failed\n", successCount, reviewCount, failureCount)
	fmt.Fprintf(os.Stderr, "Session success rate: %.2f\n", stats["success_rate"])
	fmt.Fprintf(os.Stderr, "Results: %s\n", batchOutDir)

	if failureCount > 0 {
		return fmt.Errorf("%d of %d documents failed", failureCount, len(results))
	}
	return nil
}

// batchAdapter lets the worker pool drive the shared pipeline processor.
type batchAdapter struct {
	app *app
}

func (b *batchAdapter) Process(ctx context.Context, doc pipeline.Document, path string) *pipeline.Result {
	doc.ID = documentID(path)
	doc.Filename = filepath.Base(path)
	doc.PatientID = patientID
	return b.app.processor.Process(ctx, doc, path)
}

// collectPaths expands the input into document paths: a directory is walked
// for known document extensions, anything else is read as a manifest.
func collectPaths(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	if !info.IsDir() {
		return batch.ReadPathsFromFile(input)
	}

	var paths []string
	err = filepath.WalkDir(input, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if documentExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}
