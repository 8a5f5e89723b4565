// Command jetlite translates legacy desktop-database SQL into SQLite SQL and
// runs it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ha1tch/jetlite/pkg/config"
	"github.com/ha1tch/jetlite/pkg/interceptor"
	"github.com/ha1tch/jetlite/pkg/log"
	"github.com/ha1tch/jetlite/pkg/storage"
	"github.com/ha1tch/jetlite/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{stdin: stdin, stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	cfgFile string
	cfg     *config.Config
	logger  *log.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "jetlite",
		Short: "Translate legacy desktop-database SQL to SQLite",
		Long: `jetlite rewrites SQL written for a legacy desktop database engine so that
SQLite accepts it: date literals, TOP, RIGHT JOIN, legacy functions,
NULL-tolerant comparisons, column aliases and ALTER TABLE ... DROP COLUMN.`,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./jetlite.yaml)")
	root.PersistentFlags().String("database", config.DefaultDatabase, "SQLite database path")
	root.PersistentFlags().String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error, off)")
	root.PersistentFlags().String("log-format", config.DefaultLogFormat, "log format (text, json)")

	root.AddCommand(newTranslateCmd(a))
	root.AddCommand(newExecCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newVersionCmd(a))

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	lc, err := cfg.LogConfig()
	if err != nil {
		return err
	}
	lc.Output = a.stderr

	a.cfg = cfg
	a.logger = log.New(lc)
	log.SetDefault(a.logger)

	if cfg.File != "" {
		a.logger.System().Debug("using config file", "path", cfg.File)
	}
	return nil
}

func (a *app) interceptor() *interceptor.Interceptor {
	return interceptor.New(interceptor.WithLogger(a.logger))
}

// openStorage opens the configured database, translating every command
// when translate is set.
func (a *app) openStorage(translate bool) (*storage.SQLiteStorage, error) {
	opts := []storage.Option{storage.WithLogger(a.logger)}
	if translate {
		opts = append(opts, storage.WithInterceptor(a.interceptor()))
	}
	s, err := storage.NewSQLiteStorage(a.cfg.StorageConfig(), opts...)
	if err != nil {
		return nil, err
	}
	a.logger.System().Debug("database opened", "path", a.cfg.Database)
	return s, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(a.stdout, version.Full())
			return nil
		},
	}
}
