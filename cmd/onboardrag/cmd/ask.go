package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// askOutput is the JSON output format for answers.
type askOutput struct {
	Answer     string      `json:"answer"`
	Confidence float64     `json:"confidence"`
	Seconds    float64     `json:"response_time_seconds"`
	Sources    []askSource `json:"sources"`
}

type askSource struct {
	DocumentTitle  string  `json:"document_title"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

func newAskCmd() *cobra.Command {
	var jsonOutput bool
	var userID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the corpus",
		Long: `Ask a question and get an answer grounded in the ingested documents,
with cited sources and a confidence score.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.close()

			ans, err := app.answerer.Answer(cmd.Context(), question, userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				payload := askOutput{
					Answer:     ans.Text,
					Confidence: ans.Confidence,
					Seconds:    ans.ResponseTime.Seconds(),
					Sources:    make([]askSource, 0, len(ans.Sources)),
				}
				for _, src := range ans.Sources {
					payload.Sources = append(payload.Sources, askSource{
						DocumentTitle:  src.DocumentTitle,
						ChunkIndex:     src.ChunkIndex,
						RelevanceScore: src.RelevanceScore,
						Excerpt:        src.Excerpt(),
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			fmt.Fprintln(out, ans.Text)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s\n", style(out, ansiDim,
				fmt.Sprintf("confidence: %.0f%%, %.1fs", ans.Confidence*100, ans.ResponseTime.Seconds())))
			for i, src := range ans.Sources {
				fmt.Fprintf(out, "%s\n", style(out, ansiDim,
					fmt.Sprintf("[%d] %s, section %d (%.1f%%)", i+1, src.DocumentTitle, src.ChunkIndex+1, src.RelevanceScore*100)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&userID, "user", "", "User identifier recorded with the query")

	return cmd
}
