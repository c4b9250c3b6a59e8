// Package cmd defines and implements the CLI commands for the sitearchiver executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitearchiver",
		Short: "Crawl a documentation site and archive it as Markdown and PDF.",
		Long: `sitearchiver crawls a seed page, follows same-origin links found inside a
designated content element, strips page boilerplate and saves every page as
Markdown and/or PDF. The session folder is zipped and optionally mailed or
uploaded when the crawl finishes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
