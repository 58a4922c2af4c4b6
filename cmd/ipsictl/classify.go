package main

import (
	"fmt"
	"io"

	"github.com/runixer/ipsi/internal/policy"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a score against a cutoff without calling any service",
	Long: `Apply the admission decision rules from the config to one score/cutoff pair.

Example:
  ipsictl classify --score 2.3 --cutoff 2.1 --track 학생부종합 --quality 상`,
	Args: cobra.NoArgs,
	// Only the config is needed, so skip the service setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadForCommand(cmd)
		if err != nil {
			return err
		}
		rules = policy.FromConfig(cfg.Policy)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, err := policy.ParseQuality(mustGetString(cmd, "quality"))
		if err != nil {
			return err
		}
		score := mustGetFloat(cmd, "score")
		if err := policy.ValidateScore(score); err != nil {
			return fmt.Errorf("--score: %w", err)
		}
		cutoff := mustGetFloat(cmd, "cutoff")
		if err := policy.ValidateScore(cutoff); err != nil {
			return fmt.Errorf("--cutoff: %w", err)
		}
		return printClassification(cmd.OutOrStdout(), rules, score, cutoff, quality, mustGetString(cmd, "track"))
	},
}

// rules is set by classify's pre-run.
var rules policy.Rules

func printClassification(w io.Writer, r policy.Rules, score, cutoff float64, quality policy.Quality, track string) error {
	outcome := r.Classify(score, cutoff, quality, track)
	fmt.Fprintf(w, "Family: %s\n", r.Classifier.Family(track))
	fmt.Fprintf(w, "Gap: %+.2f\n", score-cutoff)
	fmt.Fprintf(w, "Outcome: %s\n", outcome)
	return nil
}

func init() {
	classifyCmd.Flags().Float64("score", 0, "Student grade on the 1-9 scale")
	classifyCmd.Flags().Float64("cutoff", 0, "Published cutoff grade")
	classifyCmd.Flags().String("track", "", "Admission track name")
	classifyCmd.Flags().String("quality", "medium", "Student record quality")
	_ = classifyCmd.MarkFlagRequired("score")
	_ = classifyCmd.MarkFlagRequired("cutoff")
	rootCmd.AddCommand(classifyCmd)
}
