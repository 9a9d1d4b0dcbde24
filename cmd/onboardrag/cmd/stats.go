package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Long: `Display corpus statistics: document and chunk counts, embedding
coverage, document type distribution, and recent uploads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			snap, err := app.stats.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			fmt.Fprintf(out, "%s\n", style(out, ansiBold, "Corpus"))
			fmt.Fprintf(out, "  documents:  %d (%d with embeddings)\n", snap.TotalDocuments, snap.DocumentsWithEmbeddings)
			fmt.Fprintf(out, "  chunks:     %d (%.1f per document)\n", snap.TotalChunks, snap.AvgChunksPerDocument)
			fmt.Fprintf(out, "  words:      %d\n", snap.TotalWords)
			fmt.Fprintf(out, "  ready:      %v\n", snap.IsReady)

			if len(snap.TypeDistribution) > 0 {
				fmt.Fprintf(out, "%s\n", style(out, ansiBold, "Types"))
				for docType, count := range snap.TypeDistribution {
					fmt.Fprintf(out, "  %-12s %d\n", docType, count)
				}
			}

			if len(snap.RecentUploads) > 0 {
				fmt.Fprintf(out, "%s\n", style(out, ansiBold, "Recent uploads"))
				for _, up := range snap.RecentUploads {
					fmt.Fprintf(out, "  %s  %s (%d chunks)\n",
						up.UploadedAt.Format("2006-01-02"), up.Title, up.ChunkCount)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
