package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"procview/internal/tui"
)

func init() {
	rootCmd.AddCommand(cmdTUI)
}

var tuiRemote bool

func init() {
	cmdTUI.Flags().BoolVarP(&tuiRemote, "remote", "r", false, "Mirror the running daemon instead of scanning locally")
}

var cmdTUI = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := controller()
		cfg, err := ctrl.Config()
		if err != nil {
			return err
		}
		err = tui.Run(ctrl, tui.Options{
			Config:     cfg,
			ConfigPath: configPath,
			Remote:     tuiRemote,
			Logger:     slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("tui exited with error: %w", err)
		}
		return nil
	},
}
