package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/storage"
)

func newExecCmd(a *app) *cobra.Command {
	var (
		params []string
		sql    string
	)

	cmd := &cobra.Command{
		Use:   "exec [file|-]",
		Short: "Translate a legacy SQL command and run it against the database",
		Long: `Exec translates one command and runs it against --database. Queries
print their rows as a table; other statements print the rows affected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(sql)
			if text == "" {
				var err error
				if text, err = readSource(a.stdin, args); err != nil {
					return err
				}
			}
			c, skip, err := a.prepare(text, params)
			if err != nil {
				return err
			}

			s, err := a.openStorage(!skip)
			if err != nil {
				return err
			}
			defer s.Close()

			if isQuery(c.Text) {
				rs, err := s.Query(cmd.Context(), c)
				if err != nil {
					return err
				}
				printResultSet(a, rs)
				return nil
			}

			n, err := s.Exec(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d row(s) affected\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sql, "command", "e", "", "SQL to run instead of reading a file")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter binding @name[:type]=value (repeatable)")
	return cmd
}

// isQuery reports whether the first statement word, after any comment
// lines, returns rows.
func isQuery(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "--") {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "SELECT", "WITH", "PRAGMA":
			return true
		default:
			return false
		}
	}
	return false
}

func printResultSet(a *app, rs *storage.ResultSet) {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.ColumnNames(), "\t"))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = command.ValueString(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(a.stdout, "(%d row(s))\n", len(rs.Rows))
}
