package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/config"
	"github.com/ha1tch/jetlite/pkg/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Translate *.sql files into an output directory as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []watcher.Option{
				watcher.WithLogger(a.logger),
				watcher.WithDebounceDelay(a.cfg.Watch.Debounce),
			}

			if a.cfg.Database != config.DefaultDatabase {
				s, err := a.openStorage(false)
				if err != nil {
					return err
				}
				defer s.Close()
				opts = append(opts, watcher.WithDatabase(command.Database(s)))
			}

			w, err := watcher.New(a.cfg.Watch.Dir, a.cfg.Watch.OutDir, a.interceptor(), opts...)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			return w.Stop()
		},
	}

	cmd.Flags().String("dir", config.DefaultWatchDir, "directory of legacy *.sql files")
	cmd.Flags().String("out-dir", config.DefaultOutDir, "directory for translated files")
	cmd.Flags().Duration("debounce", config.DefaultDebounce, "delay before translating a changed file")
	return cmd
}
