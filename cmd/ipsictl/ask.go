package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/runixer/ipsi/internal/advisor"
	"github.com/runixer/ipsi/internal/markdown"
	"github.com/runixer/ipsi/internal/policy"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the advisor one question",
	Long: `Run a single advising turn in a fresh session and print the answer.

Example:
  ipsictl ask --institution 서울대 --track 학생부종합 --score 2.3 --quality 상 "합격 가능할까요?"
  ipsictl ask --score 3.1 "수도권 교과전형 추천해줘" --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient(cmd)
		if c == nil {
			return fmt.Errorf("ipsictl not initialized")
		}

		quality, err := policy.ParseQuality(mustGetString(cmd, "quality"))
		if err != nil {
			return err
		}
		profile := advisor.Profile{
			Institution: mustGetString(cmd, "institution"),
			Track:       mustGetString(cmd, "track"),
			Score:       mustGetFloat(cmd, "score"),
			Quality:     quality,
		}

		sess, err := c.services.Advisor.NewSession()
		if err != nil {
			return err
		}

		answer, err := c.services.Advisor.Ask(cmd.Context(), sess.ID, profile, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if mustGetString(cmd, "output") == "json" {
			return outputJSON(cmd.OutOrStdout(), map[string]any{
				"answer":   answer.Text,
				"fallback": answer.Fallback,
				"error":    answer.Failed(),
				"matches":  answer.Matches,
				"filter":   answer.Filter,
			})
		}
		return printAnswer(cmd.OutOrStdout(), answer, mustGetBool(cmd, "html"))
	},
}

func printAnswer(w io.Writer, answer advisor.Answer, html bool) error {
	text := answer.Text
	if html && !answer.Failed() {
		rendered, err := markdown.ToHTML(text)
		if err != nil {
			return fmt.Errorf("failed to render answer: %w", err)
		}
		text = rendered
	}

	fmt.Fprintln(w, text)
	fmt.Fprintf(w, "\nMatches: %d", answer.Matches)
	if answer.Fallback {
		fmt.Fprint(w, " (no grounding)")
	}
	fmt.Fprintln(w)
	if answer.Filter != "" {
		fmt.Fprintf(w, "Filter: %s\n", answer.Filter)
	}
	if answer.Failed() {
		fmt.Fprintf(w, "Error: %v\n", answer.Err)
	}
	return nil
}

func init() {
	askCmd.Flags().String("institution", "", "Target institution (empty or 'any' for all)")
	askCmd.Flags().String("track", "", "Target track (empty or 'any' for all)")
	askCmd.Flags().Float64("score", 0, "Student grade on the 1-9 scale")
	askCmd.Flags().String("quality", "medium", "Student record quality: low, medium, high, top or 하/중/상/최상")
	askCmd.Flags().Bool("html", false, "Render the answer as HTML")
	askCmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	_ = askCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(askCmd)
}
