package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ha1tch/jetlite/pkg/annotations"
	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/config"
	"github.com/ha1tch/jetlite/pkg/errors"
)

func newTranslateCmd(a *app) *cobra.Command {
	var (
		params     []string
		showParams bool
	)

	cmd := &cobra.Command{
		Use:   "translate [file|-]",
		Short: "Print the SQLite translation of a legacy SQL command",
		Long: `Translate reads one command from a file, or from stdin when the file is
omitted or "-", and prints its translation.

DROP COLUMN needs the table schema; set --database to the SQLite file that
holds the table, otherwise the statement translates to a no-op.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(a.stdin, args)
			if err != nil {
				return err
			}
			c, skip, err := a.prepare(text, params)
			if err != nil {
				return err
			}

			out := c
			if !skip {
				var db command.Database
				if a.cfg.Database != config.DefaultDatabase {
					s, err := a.openStorage(false)
					if err != nil {
						return err
					}
					defer s.Close()
					db = s
				}

				out, err = a.interceptor().Translate(cmd.Context(), db, c.Text, c.Parameters...)
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(a.stdout, out.Text)
			if showParams {
				for _, p := range out.Parameters {
					fmt.Fprintf(a.stdout, "-- %s %s = %s\n", p.Name, p.Type, command.ValueString(p.Value))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter binding @name[:type]=value (repeatable)")
	cmd.Flags().BoolVar(&showParams, "show-params", false, "print parameters after the translation")
	return cmd
}

// readSource returns the command text from the named file, or from stdin
// for no argument or "-".
func readSource(stdin io.Reader, args []string) (string, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidParameter, "failed to read SQL").Err()
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.InvalidInput("sql", "no SQL given").Err()
	}
	return text, nil
}

// prepare applies the source's directives: parameters declared in the file
// are bound first and --param flags override them by name. It reports
// whether the file asked to skip translation.
func (a *app) prepare(text string, specs []string) (*command.Command, bool, error) {
	set, text := annotations.Parse(text)
	if unknown := set.Unknown(); len(unknown) > 0 {
		a.logger.System().Warn("unknown directives ignored", "keys", strings.Join(unknown, ","))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, errors.InvalidInput("sql", "no SQL given").Err()
	}

	fileParams, err := set.Params()
	if err != nil {
		return nil, false, err
	}
	flagParams, err := parseParams(specs)
	if err != nil {
		return nil, false, err
	}

	return command.New(text, annotations.MergeParams(fileParams, flagParams)...), set.GetBool(annotations.KeySkip), nil
}

func parseParams(specs []string) ([]command.Parameter, error) {
	params := make([]command.Parameter, 0, len(specs))
	for _, spec := range specs {
		p, err := command.ParseParameter(spec)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}
