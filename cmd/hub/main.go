// Command filerelay-hub runs the routing hub server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/filerelay/filerelay/config"
	"github.com/filerelay/filerelay/events"
	"github.com/filerelay/filerelay/hub"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port          int
		storageDir    string
		maxFileSize   int64
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "filerelay-hub [port]",
		Short: "Run the filerelay routing hub",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				p, err := parsePort(args[0])
				if err != nil {
					return err
				}
				port = p
			}
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			cfg := config.New(
				config.WithPort(port),
				config.WithStorageDir(storageDir),
				config.WithUploadPolicy(func(name string, size int64) error {
					if size > maxFileSize {
						return fmt.Errorf("%s is %d bytes, over the %d-byte limit", name, size, maxFileSize)
					}
					return nil
				}),
			)

			h := hub.New(cfg, events.NewBus())
			if verbose {
				h.WithTrace(hub.DiagnosticLoggingHooks)
			} else {
				h.WithTrace(hub.DefaultLoggingHooks)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			addr := fmt.Sprintf(":%d", cfg.Port)
			logrus.WithField("addr", addr).Info("filerelay-hub: starting")
			return h.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "listening port")
	cmd.Flags().StringVarP(&storageDir, "storage-dir", "s", config.DefaultStorageDir, "storage directory recorded in the config (the hub itself writes no files)")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", config.DefaultMaxFileSize, "maximum accepted upload size, in bytes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic logging")

	return cmd
}

func parsePort(s string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(s, "%d", &port); err != nil {
		return 0, fmt.Errorf("filerelay-hub: invalid port %q", s)
	}
	return port, nil
}
