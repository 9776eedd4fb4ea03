package main

import (
	"fmt"
	"os"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/spf13/cobra"
)

func newASTCommand() *cobra.Command {
	var cst bool

	cmd := &cobra.Command{
		Use:   "ast <file>",
		Short: "Print the syntax tree of a PHP file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			if cst {
				parser, err := ast.NewParser()
				if err != nil {
					return err
				}
				defer parser.Close()

				tree := parser.Parse(content, nil)
				if tree == nil {
					return fmt.Errorf("failed to parse %s", args[0])
				}
				defer tree.Close()

				php.DumpCST(cmd.OutOrStdout(), tree.RootNode(), content)
				return nil
			}

			tree, err := ast.Parse(content)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tree.Dump(tree.Root))
			return err
		},
	}
	cmd.Flags().BoolVar(&cst, "cst", false, "print the raw tree-sitter tree instead")
	return cmd
}
