package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyrank",
		Short:         "Deduplicate, cluster and rank news stories from many outlets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(clustersCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	var (
		feeds []string
		alert bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect feeds, rank the batch and archive the run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), cmd.OutOrStdout(), feeds, alert)
		},
	}

	cmd.Flags().StringSliceVar(&feeds, "source", nil, "specific feeds to collect, by name")
	cmd.Flags().BoolVar(&alert, "alert", false, "send alerts for the top clusters")
	return cmd
}

func rankCmd() *cobra.Command {
	var (
		input      string
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a JSON batch of items without archiving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), cmd.OutOrStdout(), input, jsonOutput, limit)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "JSON batch file (array of items or {\"items\": [...]})")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "max clusters to show (0: all)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), cmd.OutOrStdout(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	return cmd
}

func clustersCmd() *cobra.Command {
	var (
		runID      string
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Show the ranked clusters of a run (default: latest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClusters(cmd.Context(), cmd.OutOrStdout(), runID, jsonOutput, limit)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "max clusters to show (0: all)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
