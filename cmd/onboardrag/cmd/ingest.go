package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// ingestOutput is the JSON output format for ingested documents.
type ingestOutput struct {
	DocumentID    string  `json:"document_id"`
	Title         string  `json:"title"`
	PageCount     int     `json:"page_count"`
	WordCount     int     `json:"word_count"`
	ChunkCount    int     `json:"chunk_count"`
	EmbeddedCount int     `json:"embedded_count"`
	Seconds       float64 `json:"processing_time_seconds"`
	Warning       string  `json:"warning,omitempty"`
}

func newIngestCmd() *cobra.Command {
	var title string
	var tagID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ingest <file.pdf> [file.pdf ...]",
		Short: "Ingest PDF documents into the corpus",
		Long: `Extract text from one or more PDF files, chunk it, embed the chunks,
and store everything in the local corpus.

A document with failed embeddings is stored anyway; run 'onboardrag
reprocess' later to retry the missing chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if title != "" && len(args) > 1 {
				return fmt.Errorf("--title applies to a single file, got %d", len(args))
			}

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}

				res, err := app.ingestor.ProcessDocument(cmd.Context(), data, title, tagID, filepath.Base(path))
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(ingestOutput{
						DocumentID:    res.DocumentID,
						Title:         res.Title,
						PageCount:     res.PageCount,
						WordCount:     res.WordCount,
						ChunkCount:    res.ChunkCount,
						EmbeddedCount: res.EmbeddedCount,
						Seconds:       res.Elapsed.Seconds(),
						Warning:       res.Warning,
					}); err != nil {
						return err
					}
					continue
				}

				fmt.Fprintf(out, "%s\n", style(out, ansiBold, res.Title))
				fmt.Fprintf(out, "  id:       %s\n", res.DocumentID)
				fmt.Fprintf(out, "  pages:    %d, words: %d\n", res.PageCount, res.WordCount)
				fmt.Fprintf(out, "  chunks:   %d stored, %d embedded\n", res.ChunkCount, res.EmbeddedCount)
				fmt.Fprintf(out, "  took:     %.1fs\n", res.Elapsed.Seconds())
				if res.Warning != "" {
					fmt.Fprintf(out, "  warning:  %s\n", res.Warning)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Document title (single file only; defaults to PDF metadata or filename)")
	cmd.Flags().StringVar(&tagID, "tag", "", "Tag ID to attach to the documents")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
