package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/runixer/ipsi/internal/catalog"
	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the selectable institutions and tracks",
	Long: `Build the option snapshot from the record database and print it.
Tracks are shown by canonical name followed by the spellings found in the corpus.

Example:
  ipsictl options
  ipsictl options --output json`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationOffline: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient(cmd)
		if c == nil {
			return fmt.Errorf("ipsictl not initialized")
		}

		snap := c.services.Catalog.Snapshot(cmd.Context())
		if mustGetString(cmd, "output") == "json" {
			return outputJSON(cmd.OutOrStdout(), snap)
		}
		return printSnapshot(cmd.OutOrStdout(), snap)
	},
}

func printSnapshot(w io.Writer, snap catalog.Snapshot) error {
	fmt.Fprintf(w, "Status: %s\n", snap.Status)
	if snap.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", snap.Version)
	}

	fmt.Fprintf(w, "\nInstitutions (%d):\n", len(snap.Institutions))
	for _, name := range snap.Institutions {
		fmt.Fprintf(w, "  %s\n", name)
	}

	names := snap.Tracks.Canonical()
	fmt.Fprintf(w, "\nTracks (%d):\n", len(names))
	for _, name := range names {
		variants, _ := snap.Tracks.Variants(name)
		fmt.Fprintf(w, "  %s [%s]\n", name, strings.Join(variants, ", "))
	}
	return nil
}

func init() {
	optionsCmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	rootCmd.AddCommand(optionsCmd)
}
