package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Konsultn-Engineering/esql/connector"
	"github.com/Konsultn-Engineering/esql/dialect"
	"github.com/Konsultn-Engineering/esql/subst"
	"github.com/Konsultn-Engineering/esql/translator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Dialect string // overrides the configured dialect
	Config  string // YAML file or "driver=...&database=..." string

	logger *slog.Logger
}

// NewRootCommand creates the root command for the esql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "esql",
		Short: "esql - expressive SQL templates",
		Long:  `Translate, inspect and run SQL templates against MySQL, PostgreSQL and SQLite.

Templates are SQL text with %-modifiers that escape the next argument
(%s string, %i integer, %n identifier, %and conditions, %v insert values,
%ex nested template, %if/%else/%end sections) and :name: substitutions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Dialect != "" {
				if _, err := dialect.Lookup(opts.Dialect); err != nil {
					return err
				}
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every statement")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (mysql|tidb|postgres|sqlite)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "connection config file or query string")

	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))

	return cmd
}

// Logger returns the logger set up for the running command.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// loadConfig reads --config. A value that is not an existing file but looks
// like a query string is parsed as one.
func (o *RootOptions) loadConfig() (*connector.Config, error) {
	if o.Config == "" {
		return nil, nil
	}
	var (
		cfg connector.Config
		err error
	)
	if _, statErr := os.Stat(o.Config); statErr != nil && strings.Contains(o.Config, "=") {
		cfg, err = connector.ParseConfigString(o.Config)
	} else {
		cfg, err = connector.LoadConfig(o.Config)
	}
	if err != nil {
		return nil, err
	}
	if o.Dialect != "" {
		cfg.Dialect = o.Dialect
	}
	return &cfg, nil
}

// newTranslator builds an offline translator from the flags and config.
func (o *RootOptions) newTranslator() (*translator.Translator, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	var d dialect.Dialect = dialect.NewMySQLDialect()
	table := subst.New()
	switch {
	case cfg != nil:
		if fallback, err := dialect.Lookup(cfg.Driver); err == nil {
			d = fallback
		}
		if d, err = cfg.ResolveDialect(d); err != nil {
			return nil, err
		}
		table.AddAll(cfg.Substitutions)
		if cfg.TablePrefix != "" {
			table.SetFallback(subst.TableFallback(cfg.TablePrefix))
		}
	case o.Dialect != "":
		if d, err = dialect.Lookup(o.Dialect); err != nil {
			return nil, err
		}
	}

	topts := []translator.Option{
		translator.WithSubstitutions(table),
		translator.WithLogger(o.Logger()),
	}
	if cfg != nil && cfg.MaxDepth > 0 {
		topts = append(topts, translator.WithMaxDepth(cfg.MaxDepth))
	}
	return translator.New(d, topts...), nil
}

// templateOptions are shared by every command that takes a template.
type templateOptions struct {
	Args     string
	ArgsFile string
}

func (t *templateOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.Args, "args", "a", "", "template arguments as a YAML list")
	cmd.Flags().StringVar(&t.ArgsFile, "args-file", "", "read template arguments from a YAML file")
}

// template joins the fragments and decoded arguments into a template.
// A single "-" fragment reads the template from in.
func (t *templateOptions) template(in io.Reader, fragments []string) (*translator.Template, error) {
	if len(fragments) == 1 && fragments[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		fragments = []string{strings.TrimSpace(string(data))}
	}

	src := t.Args
	if t.ArgsFile != "" {
		data, err := os.ReadFile(t.ArgsFile)
		if err != nil {
			return nil, fmt.Errorf("read args: %w", err)
		}
		src = string(data)
	}
	args, err := parseArgs(src)
	if err != nil {
		return nil, err
	}

	// Arguments are consumed in order across all fragments.
	tpl := translator.SQL(fragments[0], args...)
	for _, f := range fragments[1:] {
		tpl.Append(f)
	}
	return tpl, nil
}

// parseArgs decodes a YAML list. Sequences become []any and mappings
// map[string]any.
func parseArgs(src string) ([]any, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	var args []any
	if err := yaml.Unmarshal([]byte(src), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
