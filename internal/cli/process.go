package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clarimed/clarimed/internal/model"
	"github.com/clarimed/clarimed/internal/pipeline"
)

var (
	processTimeout time.Duration
	patientID      string
	outJSON        string
	auditLog       string
	storeDir       string
	noCache        bool
	strictMode     bool
	primaryFlag    string
	secondaryFlag  string
	modelFlag      string
	noDegraded     bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single clinical document",
	Long: `Process runs one clinical document through the full pipeline:
- Read and quality-check the document text
- Extract structured medical entities via the configured AI backends
- Validate the structured extraction
- Convert to FHIR resource mappings and validate those
- Persist the result and print it as JSON

Example:
  clarimed process visit-note.txt
  clarimed process visit-note.txt --patient 12345 --json result.json
  clarimed process visit-note.txt --primary openai --model gpt-4o-mini
  clarimed process visit-note.txt --strict --audit-log audit.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().DurationVar(&processTimeout, "timeout", 5*time.Minute, "overall processing timeout")
	processCmd.Flags().StringVar(&patientID, "patient", "unknown", "patient identifier for FHIR subject references")
	processCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: stdout)")
	processCmd.Flags().StringVar(&auditLog, "audit-log", "", "append audit events to this JSONL file")
	processCmd.Flags().StringVar(&storeDir, "store-dir", "", "persist results under this directory")
	processCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction cache")
	processCmd.Flags().BoolVar(&strictMode, "strict", false, "treat all validation issues as failures")
	processCmd.Flags().StringVar(&primaryFlag, "primary", "", "primary AI backend (openai, anthropic)")
	processCmd.Flags().StringVar(&secondaryFlag, "secondary", "", "secondary AI backend (openai, anthropic)")
	processCmd.Flags().StringVar(&modelFlag, "model", "", "model name for the primary backend")
	processCmd.Flags().BoolVar(&noDegraded, "no-degraded", false, "disable the regex fallback extractor")
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	cfg := loadConfig()
	applyBackendFlags(cfg)
	if noCache {
		cfg.Cache.Enabled = false
	}
	if strictMode {
		cfg.Validation.Strict = true
	}
	if noDegraded {
		cfg.Extraction.DegradedEnabled = false
	}

	a, cleanup, err := buildApp(cfg, auditLog, storeDir)
	if err != nil {
		return err
	}
	defer cleanup()

	doc := pipeline.Document{
		ID:        documentID(path),
		Filename:  filepath.Base(path),
		PatientID: patientID,
	}

	result := a.processor.Process(ctx, doc, path)
	a.alerts.Evaluate()

	if verbose {
		stats := a.orchestrator.Session().Stats()
		fmt.Fprintf(os.Stderr, "Session %v: %v attempts, %v successes\n",
			stats["session_id"], stats["extraction_attempts"], stats["successful_extractions"])
	}

	if err := writeResult(result.Map(), outJSON); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("processing failed (status %s)", result.Status)
	}
	if result.Status == pipeline.StatusReview {
		fmt.Fprintf(os.Stderr, "Document needs manual review (%d issues)\n", len(result.Issues))
	}
	return nil
}

func applyBackendFlags(cfg *model.Config) {
	if primaryFlag != "" {
		cfg.Primary.Provider = primaryFlag
	}
	if secondaryFlag != "" {
		cfg.Secondary.Provider = secondaryFlag
	}
	if modelFlag != "" {
		cfg.Primary.Model = modelFlag
	}
	fillAPIKey(&cfg.Primary)
	fillAPIKey(&cfg.Secondary)
}

func writeResult(result map[string]interface{}, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Result written to %s\n", path)
	return nil
}

// documentID derives a stable identifier from the file name.
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
