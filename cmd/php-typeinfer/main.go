// Command php-typeinfer deduces the types of PHP expressions. It runs as a
// language server or answers single queries from the command line.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "php-typeinfer",
		Short:         "Flow-sensitive type deduction for PHP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rootPath, "root", "", "project root (defaults to the working directory)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newDeduceCommand())
	root.AddCommand(newIndexCommand())
	root.AddCommand(newASTCommand())
	return root
}

func main() {
	log.SetFlags(0)

	if err := newRootCommand().Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
