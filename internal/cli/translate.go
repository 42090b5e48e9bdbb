package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/esql/utils"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	templateOptions

	Dump bool // pretty-print the result
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <template> [fragment...]",
		Short: "Translate a template to SQL",
		Long: `Translate a template and its arguments to SQL for the selected dialect.

Arguments are given as a YAML list, for example:

  esql translate 'SELECT * FROM %n WHERE %and' --args '[users, {active: true}]'

Nothing is sent to a database; a config only contributes its dialect and
substitutions.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "put each major clause on its own line")

	return cmd
}

// NewDumpCommand creates the dump command, translate with --dump set.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts, Dump: true}

	cmd := &cobra.Command{
		Use:           "dump <template> [fragment...]",
		Short:         "Translate a template and pretty-print the SQL",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args, cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runTranslate(opts *TranslateOptions, fragments []string, cmd *cobra.Command) error {
	tr, err := opts.newTranslator()
	if err != nil {
		return err
	}
	tpl, err := opts.template(cmd.InOrStdin(), fragments)
	if err != nil {
		return err
	}

	sql, err := tr.TranslateTemplate(tpl)
	if err != nil {
		return err
	}
	if opts.Dump {
		sql = utils.Dump(sql)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sql)
	return nil
}
