package main

import (
	"fmt"
	"github.com/evgkarn/cafebot/internal/config"
	"github.com/evgkarn/cafebot/internal/evidence"
	"github.com/evgkarn/cafebot/internal/report"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(renderCmd)
}

var rootCmd = &cobra.Command{
	Use:  "checklistctl",
	Long: `Maintenance utilities for the cafe checklist bot.`,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete evidence blobs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(os.LookupEnv)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		store := evidence.NewStore(cfg.MediaDir, logger)
		deleted := store.Prune(evidence.DefaultMaxAge, true)
		cmd.Printf("deleted %d blobs\n", deleted)
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <report.json>",
	Short: "Print the formatted text of a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := report.Load(args[0])
		if err != nil {
			return err
		}
		cmd.Println(rep.Format())
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
