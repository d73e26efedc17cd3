package cmd

import (
	"github.com/spf13/cobra"
)

func newUpsertCmd() *cobra.Command {
	var params []string
	var jsonOutput bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upsert <kml>",
		Short: "Run a KML upsert statement",
		Long: `upsert runs a KML upsert statement (spec.md §4.5): concepts merge on
(type, name), propositions merge on (subject, predicate, object).

  andadb upsert 'UPSERT { CONCEPT ?a {type: "Person", name: "Alice"} SET ATTRIBUTES {age: 30} }'
  andadb upsert 'UPSERT { CONCEPT ?a {type: "Person", name: $name} SET PROPOSITIONS { ("knows", {type: "Person", name: "Bob"}) } }' --param name=Alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := parseParams(params)
			if err != nil {
				return err
			}
			result, err := execKIP(cmd.Context(), args[0], bound, dryRun)
			if err != nil {
				return err
			}
			return printExecuteResult(cmd, result, jsonOutput)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Bind a $name parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing (spec.md §9)")

	return cmd
}
