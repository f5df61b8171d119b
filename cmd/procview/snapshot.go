package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"procview/internal/app"
)

func init() {
	rootCmd.AddCommand(cmdSnapshot)
}

var (
	snapshotPath    string
	snapshotTimeout time.Duration
)

func init() {
	cmdSnapshot.Flags().StringVarP(&snapshotPath, "output", "o", "procview-snapshot.json", "File the inventory is written to")
	cmdSnapshot.Flags().DurationVarP(&snapshotTimeout, "timeout", "t", 5*time.Second, "Timeout for the daemon requests")
}

var cmdSnapshot = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the daemon's inventory to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := controller().Snapshot(cmd.Context(), app.SnapshotParams{
			Path:    snapshotPath,
			Timeout: snapshotTimeout,
		})
		if err != nil {
			return err
		}
		kinds := make([]string, 0, len(res.Counts))
		for k := range res.Counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %s\n", res.Path)
		for _, k := range kinds {
			fmt.Fprintf(out, "  %s: %d\n", k, res.Counts[k])
		}
		return nil
	},
}
