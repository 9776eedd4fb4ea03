package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

func newIndexCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the symbol index and print its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}
			p.scanner.AddIndexer(p.index)
			defer func() { _ = p.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if force {
				if err := p.scanner.ClearHashes(); err != nil {
					return err
				}
			}

			start := time.Now()
			if err := p.scanner.IndexAll(ctx); err != nil {
				return err
			}
			log.Printf("Indexed %s in %s", p.cfg.Root, time.Since(start).Round(time.Millisecond))

			files, err := p.scanner.Files()
			if err != nil {
				return err
			}
			stats, err := p.index.Stats()
			if err != nil {
				return err
			}

			out := `{}`
			for _, field := range []struct {
				path  string
				value interface{}
			}{
				{"root", p.cfg.Root},
				{"cacheDir", p.cfg.CacheDir},
				{"files", len(files)},
				{"classes", stats.Classes},
				{"functions", stats.Functions},
				{"constants", stats.Constants},
			} {
				if out, err = sjson.Set(out, field.path, field.value); err != nil {
					return err
				}
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), string(pretty.Pretty([]byte(out))))
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-parse every file")
	return cmd
}
