package cmd

import (
	"github.com/spf13/cobra"
)

func newDescribeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "describe <meta>",
		Short: "Run a META introspection statement",
		Long: `describe runs a META statement (spec.md §4.5), introspecting the
graph's declared concept/proposition types or the LLM-facing primer.

  andadb describe 'DESCRIBE { CONCEPT TYPES }'
  andadb describe 'DESCRIBE { PROPOSITION TYPES }'
  andadb describe 'DESCRIBE { CONCEPT TYPE "Person" }'
  andadb describe 'DESCRIBE { PRIMER }'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := execKIP(cmd.Context(), args[0], nil, false)
			if err != nil {
				return err
			}
			return printExecuteResult(cmd, result, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	return cmd
}
