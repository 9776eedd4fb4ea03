package main

import (
	"fmt"
	"log"
	"os"

	"github.com/shopware/php-typeinfer/internal/lsp"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProject()
			if err != nil {
				return err
			}

			if logFile == "" {
				logFile = p.cfg.LogFile
			}
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer func() { _ = f.Close() }()
				log.SetOutput(f)
			} else {
				// stdout carries the protocol
				log.SetOutput(os.Stderr)
			}

			server := lsp.NewServer(p.scanner, p.index)
			server.RegisterIndexer(p.index)
			defer func() {
				if err := server.CloseAll(); err != nil {
					log.Printf("Error closing indexers: %v", err)
				}
			}()

			if p.cfg.WatchEnabled() {
				if err := p.scanner.StartWatcher(); err != nil {
					log.Printf("Warning: file watcher not started: %v", err)
				}
			}

			log.Printf("Serving %s", p.cfg.Root)
			return server.Start(os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write the log to this file")
	return cmd
}
