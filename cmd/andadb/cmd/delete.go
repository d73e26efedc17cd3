package cmd

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var params []string
	var jsonOutput bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "delete <kml>",
		Short: "Run a KML delete statement",
		Long: `delete runs a KML delete statement (spec.md §4.5). DELETE CONCEPT takes
an optional DETACH modifier to cascade to every proposition naming the
concept as subject or object; without it, a concept still referenced
by a proposition is left in place and reported as an error.

  andadb delete 'DELETE CONCEPT ?c DETACH WHERE { ?c {type: "Person", name: "Alice"} }'
  andadb delete 'DELETE PROPOSITION (?a, "knows", ?b) WHERE { ?a {type: "Person", name: $name} }' --param name=Alice`,
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
