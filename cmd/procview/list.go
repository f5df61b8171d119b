package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"procview/internal/app"
	"procview/internal/registry"
)

func init() {
	rootCmd.AddCommand(cmdList)
}

var (
	listKind    string
	listPIDs    []int
	listKeys    []string
	listStates  []string
	listSearch  string
	listJSON    bool
	listTimeout time.Duration
)

func init() {
	f := cmdList.Flags()
	f.StringVarP(&listKind, "kind", "k", "", "Entity kind: process or service (default both)")
	f.IntSliceVar(&listPIDs, "pid", nil, "Only entities with these PIDs")
	f.StringSliceVar(&listKeys, "key", nil, "Only entities with these keys")
	f.StringSliceVar(&listStates, "state", nil, "Only entities in these states")
	f.StringVarP(&listSearch, "search", "s", "", "Case-insensitive substring of name, command or description")
	f.BoolVar(&listJSON, "json", false, "Print JSON instead of a table")
	f.DurationVarP(&listTimeout, "timeout", "t", 2*time.Second, "Timeout for the daemon request")
}

var cmdList = &cobra.Command{
	Use:   "list",
	Short: "List the daemon's current inventory",
	Long:  `Fetches processes and services from the running daemon, optionally filtered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := controller().List(cmd.Context(), app.ListParams{
			Filters: app.ListFilters{
				Kind:       listKind,
				PIDs:       listPIDs,
				Keys:       listKeys,
				States:     listStates,
				TextSearch: listSearch,
			},
			Timeout: listTimeout,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if snaps == nil {
				snaps = []registry.Snapshot{}
			}
			return enc.Encode(snaps)
		}
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No entities matched")
			return nil
		}
		printSnapshots(out, snaps)
		return nil
	},
}

func printSnapshots(w io.Writer, snaps []registry.Snapshot) {
	for _, s := range snaps {
		name := s.Name
		if s.Kind == registry.KindProcess && s.Cmd != "" {
			name = s.Cmd
		}
		fmt.Fprintf(w, "%-8s %-7s %s %s\n",
			s.Kind.String(),
			pidColumn(s.PID),
			runewidth.FillRight(runewidth.Truncate(s.State, 18, "…"), 18),
			strings.TrimSpace(name))
	}
}

func pidColumn(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprint(pid)
}
