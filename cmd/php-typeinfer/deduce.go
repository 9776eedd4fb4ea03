package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopware/php-typeinfer/internal/ast"
	"github.com/shopware/php-typeinfer/internal/php"
	"github.com/shopware/php-typeinfer/internal/typeinference"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

type deduceOptions struct {
	noIndex   bool
	variables bool
	compact   bool
}

func newDeduceCommand() *cobra.Command {
	var opts deduceOptions

	cmd := &cobra.Command{
		Use:   "deduce <file> <offset|line:column>",
		Short: "Print the types of the expression at a position",
		Long: `Print the candidate types of the innermost expression at a position as JSON.

The position is a byte offset or a 1-based line:column pair. Unless --no-index
is given the project is indexed first so classes declared in other files are
known.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			doc, err := typeinference.ParseDocument(path, content)
			if err != nil {
				return err
			}

			overlay := php.NewMemoryIndex()
			overlay.SetFile(path, doc.Index)
			sources := []php.SymbolSource{overlay}

			if !opts.noIndex {
				p, err := openProject()
				if err != nil {
					return err
				}
				p.scanner.AddIndexer(p.index)
				defer func() { _ = p.Close() }()

				if err := p.scanner.IndexAll(context.Background()); err != nil {
					return err
				}
				sources = append(sources, p.index)
			}

			offset, err := parsePosition(args[1], doc.Tree)
			if err != nil {
				return err
			}
			return writeDeduction(cmd.OutOrStdout(), doc, offset, php.NewCatalog(sources...), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noIndex, "no-index", false, "only use the symbols of the file itself")
	cmd.Flags().BoolVar(&opts.variables, "vars", false, "include every tracked variable in scope")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print compact JSON")
	return cmd
}

// parsePosition reads a byte offset or a 1-based line:column pair.
func parsePosition(arg string, tree *ast.Tree) (uint, error) {
	if lineText, colText, ok := strings.Cut(arg, ":"); ok {
		line, err := strconv.Atoi(lineText)
		if err != nil || line < 1 {
			return 0, fmt.Errorf("invalid line in %q", arg)
		}
		col, err := strconv.Atoi(colText)
		if err != nil || col < 1 {
			return 0, fmt.Errorf("invalid column in %q", arg)
		}
		return tree.OffsetAt(line-1, col-1), nil
	}

	offset, err := strconv.ParseUint(arg, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", arg)
	}
	if offset > uint64(len(tree.Source)) {
		return 0, fmt.Errorf("offset %d is past the end of the file", offset)
	}
	return uint(offset), nil
}

func writeDeduction(w io.Writer, doc *typeinference.Document, offset uint, meta typeinference.Metadata, opts deduceOptions) error {
	deducer := doc.Deducer(meta)
	id, types, err := deducer.DeduceAt(offset)
	if err != nil {
		return err
	}
	if types == nil {
		types = []string{}
	}

	out := `{}`
	set := func(path string, value interface{}) {
		if err == nil {
			out, err = sjson.Set(out, path, value)
		}
	}

	set("file", doc.Path)
	set("offset", offset)
	set("line", doc.Tree.LineAt(offset))
	if id != ast.None {
		set("expression", doc.Tree.Text(id))
		set("kind", ast.KindName(doc.Tree.Node(id)))
	} else {
		set("expression", nil)
	}
	set("types", types)

	if opts.variables {
		variables, verr := deducer.ExpressionTypes(offset)
		if verr != nil {
			return verr
		}
		set("variables", variables)
	}
	if err != nil {
		return err
	}

	result := []byte(out)
	if opts.compact {
		result = append(pretty.Ugly(result), '\n')
	} else {
		result = pretty.Pretty(result)
	}
	_, err = w.Write(result)
	return err
}
