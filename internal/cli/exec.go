package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/esql/database"
	"github.com/Konsultn-Engineering/esql/engine"
	_ "github.com/Konsultn-Engineering/esql/providers/postgres"
	_ "github.com/Konsultn-Engineering/esql/providers/sqlite"
	"github.com/Konsultn-Engineering/esql/subst"
)

var errNoConfig = errors.New("a connection is required: pass --config")

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	templateOptions

	Query bool // force reading rows
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <template> [fragment...]",
		Short: "Translate a template and run it",
		Long: `Translate a template and run it on the configured connection.

Statements that return rows (SELECT, WITH, SHOW, EXPLAIN, PRAGMA, VALUES)
print the rows as YAML; anything else prints the number of affected rows.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), opts, args, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVarP(&opts.Query, "query", "q", false, "always print the result rows")

	return cmd
}

// openEngine connects with the --config settings.
func (o *RootOptions) openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errNoConfig
	}
	return engine.Open(ctx, *cfg, engine.WithSubstitutions(subst.New()), engine.WithLogger(o.Logger()))
}

func runExec(ctx context.Context, opts *ExecOptions, fragments []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tpl, err := opts.template(cmd.InOrStdin(), fragments)
	if err != nil {
		return err
	}
	e, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	sql, err := e.SQL(tpl)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if opts.Query || returnsRows(sql) {
		rows, err := e.NativeQuery(ctx, sql)
		if err != nil {
			return err
		}
		result, err := database.FetchAll(rows)
		if err != nil {
			return err
		}
		return writeRows(out, result)
	}

	res, err := e.NativeExec(ctx, sql)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rows affected\n", n)
	return nil
}

var rowKeywords = []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "PRAGMA", "VALUES", "DESCRIBE"}

func returnsRows(sql string) bool {
	fields := strings.Fields(strings.TrimLeft(sql, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	for _, kw := range rowKeywords {
		if strings.EqualFold(fields[0], kw) {
			return true
		}
	}
	return false
}

func writeRows(w io.Writer, rows []map[string]any) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	return enc.Close()
}
