package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docintel/internal/config"
	"docintel/internal/docintel"
	"docintel/internal/export"
	"docintel/internal/gdocai"
	"docintel/internal/logger"
)

var (
	analyzeEndpoint string
	analyzeAPIKey   string
	analyzeUseKey   bool
	analyzeProvider string
	analyzeOut      string
	analyzeXLSX     string
	analyzePDFOnly  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a document and print the normalized result",
	Long: `Analyze a document with the configured document intelligence provider.

The document is validated locally (type, emptiness, size) before being
submitted. The analysis blocks until the upstream job completes; transient
failures are retried with exponential backoff.

Examples:
  docintel analyze report.pdf
  docintel analyze report.pdf --use-key --api-key $DOCUMENT_INTELLIGENCE_KEY
  docintel analyze report.pdf --out result.json --xlsx tables.xlsx
  docintel analyze scan.png --provider documentai`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("analyze")
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc := docintel.UploadedDocument{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: docintel.ContentTypeForFilename(path),
	}

	analyzer, err := buildAnalyzer(cmd)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(cmd.Context(), doc)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	if analyzeOut != "" {
		if err := os.WriteFile(analyzeOut, out, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", analyzeOut, err)
		}
		log.Info().Str("path", analyzeOut).Msg("Result written")
	} else {
		fmt.Println(string(out))
	}

	if analyzeXLSX != "" {
		workbook, err := export.TablesWorkbook(result)
		if err != nil {
			return err
		}
		if err := workbook.SaveAs(analyzeXLSX); err != nil {
			return fmt.Errorf("failed to write %s: %w", analyzeXLSX, err)
		}
		log.Info().
			Str("path", analyzeXLSX).
			Int("tables", len(result.Tables)).
			Msg("Workbook written")
	}

	return nil
}

// buildAnalyzer wires the selected provider from flags and environment.
func buildAnalyzer(cmd *cobra.Command) (docintel.Analyzer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if analyzeProvider == "documentai" {
		gcfg := gdocai.Config{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
		}
		if analyzePDFOnly {
			gcfg.AcceptedTypes = docintel.PDFOnly
		}
		return gdocai.New(cmd.Context(), gcfg)
	}

	analyzerCfg := docintel.DefaultAnalyzerConfig()
	analyzerCfg.Endpoint = cfg.Endpoint
	analyzerCfg.AuthMode = cfg.AuthMode
	analyzerCfg.APIKey = cfg.APIKey
	analyzerCfg.TenantID = cfg.TenantID
	analyzerCfg.ClientID = cfg.ClientID
	if analyzeEndpoint != "" {
		analyzerCfg.Endpoint = analyzeEndpoint
	}
	if analyzeUseKey {
		analyzerCfg.AuthMode = config.AuthModeKey
	}
	if analyzeAPIKey != "" {
		analyzerCfg.APIKey = analyzeAPIKey
	}
	if analyzePDFOnly {
		analyzerCfg.AcceptedTypes = docintel.PDFOnly
	}

	return docintel.NewLayoutAnalyzer(analyzerCfg), nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeEndpoint, "endpoint", "", "Document intelligence endpoint URL (default: DOCUMENT_INTELLIGENCE_ENDPOINT)")
	analyzeCmd.Flags().BoolVar(&analyzeUseKey, "use-key", false, "Use API key authentication instead of managed identity")
	analyzeCmd.Flags().StringVar(&analyzeAPIKey, "api-key", "", "API key (default: DOCUMENT_INTELLIGENCE_KEY)")
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "layout", "Analysis provider: layout or documentai")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Write the JSON result to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "Also export detected tables to an .xlsx workbook")
	analyzeCmd.Flags().BoolVar(&analyzePDFOnly, "pdf-only", false, "Accept only PDF uploads")

	rootCmd.AddCommand(analyzeCmd)
}
