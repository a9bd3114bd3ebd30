package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	jsonOutput bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "technews",
		Short:         "Ingest, classify and rank tech news from RSS feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	root.AddCommand(setupCmd())
	root.AddCommand(pollCmd())
	root.AddCommand(jobCmd("refresh", "Recompute priorities of recent articles", runRefresh))
	root.AddCommand(trendingCmd())
	root.AddCommand(jobCmd("health", "Grade feed sources and alert on unhealthy ones", runHealth))
	root.AddCommand(jobCmd("cleanup", "Delete expired articles and scraping logs", runCleanup))
	root.AddCommand(summarizeCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func jobCmd(use, short string, fn func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fn()
		},
	}
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the schema and seed the configured sources and tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup()
		},
	}
}

func pollCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Fetch feeds and upsert their articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "poll only the source with this name")
	return cmd
}

func trendingCmd() *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Detect trending keywords and mark trending articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrending(window)
		},
	}

	cmd.Flags().IntVar(&window, "window", 0, "window in hours (default: from config)")
	return cmd
}

func summarizeCmd() *cobra.Command {
	var (
		article int64
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate summaries for articles that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(article, limit)
		},
	}

	cmd.Flags().Int64Var(&article, "article", 0, "summarize a single article by id")
	cmd.Flags().IntVar(&limit, "limit", 0, "max articles per batch (default: from config)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate URL...",
		Short: "Check that URLs serve usable RSS or Atom feeds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Args:  cobra.NoArgs,
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
		Short: "Start daemon with scheduler, task queue and HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
