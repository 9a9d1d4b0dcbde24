package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess [documentID]",
		Short: "Re-chunk and re-embed stored documents",
		Long: `Re-run chunking and embedding from the stored document text.

With a document ID, reprocess that document only. Without arguments,
reprocess the entire corpus; per-document failures are reported and do
not stop the run. Useful after chunking configuration changes or to
retry failed embeddings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				res, err := app.ingestor.ReprocessDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d chunks, %d embedded (%.1fs)\n",
					res.Title, res.ChunkCount, res.EmbeddedCount, res.Elapsed.Seconds())
				if res.Warning != "" {
					fmt.Fprintf(out, "warning: %s\n", res.Warning)
				}
				return nil
			}

			report, err := app.ingestor.ReprocessAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "reprocessed %d documents, %d failed\n", report.Processed, report.Errors)
			if report.Errors > 0 {
				return fmt.Errorf("%d documents failed; see the service log for details", report.Errors)
			}
			return nil
		},
	}

	return cmd
}
