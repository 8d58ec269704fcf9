package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/doclens/doclens/internal/assets"
	"github.com/doclens/doclens/internal/pipeline"
	"github.com/doclens/doclens/internal/textmetrics"
)

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract text from a local document",
	Long: `Extract text, layout and markdown from a local image or PDF file by
sending it through the OCR serving endpoint. Embedded images found in the
layout are written under the output directory and replaced with URL
references in the printed result.

Examples:
  doclens extract scan.png
  doclens extract report.pdf --output ./out
  doclens extract scan.jpg --text-only`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		path := args[0]

		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot access input file %s: %w", path, err)
		}

		outputDir := cfg.Mount.Dir
		if cmd.Flags().Changed("output") {
			outputDir, _ = cmd.Flags().GetString("output")
		}

		engineURL := cfg.Engine.URL
		if cmd.Flags().Changed("engine-url") {
			engineURL, _ = cmd.Flags().GetString("engine-url")
		}

		textOnly, _ := cmd.Flags().GetBool("text-only")

		pCfg := pipeline.Config{
			EngineURL:                 engineURL,
			AuthToken:                 cfg.Engine.AuthToken,
			RequestTimeoutSec:         cfg.Engine.RequestTimeoutSec,
			UseDocOrientationClassify: cfg.Engine.UseDocOrientationClassify,
			UseDocUnwarping:           cfg.Engine.UseDocUnwarping,
			UseLayoutDetection:        cfg.Engine.UseLayoutDetection && !textOnly,
		}

		ctx := cmd.Context()
		if pCfg.RequestTimeoutSec > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(pCfg.RequestTimeoutSec)*time.Second)
			defer cancel()
		}

		p := pipeline.New(pCfg)
		pages, err := p.Process(ctx, path)
		if err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}

		if textOnly {
			for _, page := range pages {
				if page.Text != "" {
					fmt.Fprintln(cmd.OutOrStdout(), page.Text)
				}
			}
			return nil
		}

		sessionID := assets.NewSessionID()
		store := assets.NewStore(outputDir)
		ext := assets.NewExternalizer(store, sessionID, filepath.Base(path))

		results := make([]any, 0, len(pages))
		for i, page := range pages {
			result := map[string]any{
				"page":         i + 1,
				"text_content": page.Text,
			}
			if page.Structure != nil {
				result["structure_info"] = map[string]any{"json": page.Structure}
			}
			if page.Markdown != "" {
				result["markdown"] = page.Markdown
			}
			if page.Layout != nil {
				result["layout_analysis"] = page.Layout
			}
			result["character_metrics"] = textmetrics.Compute(page.Text)
			results = append(results, result)
		}

		out := map[string]any{
			"results":     ext.ExternalizeUnder("results", results),
			"total_pages": len(pages),
			"session_id":  sessionID,
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("output", "o", "", "directory extracted images are written under")
	extractCmd.Flags().String("engine-url", "", "override OCR serving endpoint URL")
	extractCmd.Flags().Bool("text-only", false, "print plain text only, skip layout and assets")
}
