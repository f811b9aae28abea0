// Command routinectl runs conflict analysis and routine optimization offline, and
// manages the reference data the server reads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalOptions struct {
	rulesFile string
	asJSON    bool
	docsDir   string
	verbose   bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "routinectl",
		Short:         "Analyze ingredient conflicts and build skincare routines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", "", "rule set YAML (default: embedded rules, or RULES_FILE)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON instead of a summary")
	root.PersistentFlags().StringVar(&opts.docsDir, "docs", "", "directory of markdown references to index in memory for retrieval")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newAnalyzeCommand(opts),
		newOptimizeCommand(opts),
		newIngestCommand(opts),
		newSeedRulesCommand(opts),
	)
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("routinectl %s\n", version))
	return root
}

const version = "0.1.0"
