package cmd

import (
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var params []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <kql>",
		Short: "Run a KQL find/describe statement",
		Long: `query runs a KQL statement (find/describe, spec.md §4.5) against the
graph, preferring a running daemon and falling back to local execution.

  andadb query 'FIND(?c) WHERE { ?c {type: "Person", name: "Alice"} }'
  andadb query 'FIND(?c.name) WHERE { ?c {type: "Person", name: $name} }' --param name=Alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := parseParams(params)
			if err != nil {
				return err
			}
			result, err := execKIP(cmd.Context(), args[0], bound, false)
			if err != nil {
				return err
			}
			return printExecuteResult(cmd, result, jsonOutput)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Bind a $name parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output rows as JSON")

	return cmd
}
