package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"termcore/internal/expression"
)

var checkCmd = &cobra.Command{
	Use:   "check <expression>...",
	Short: "Parse reference expressions and print their canonical form",
	Long: `Parse one or more reference expressions and print the canonical form of
each, or the parse error. Exits non-zero when any expression is invalid.

Examples:
  termcore check /orgs/WHO/sources/ICD-10/concepts/A15.1/
  termcore check /users/jo/sources/Custom/mappings/m42/v2/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed bool
		for _, raw := range args {
			parsed, err := expression.Parse(raw)
			if err != nil {
				failed = true
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", raw, err)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), parsed.String())
		}
		if failed {
			return fmt.Errorf("invalid expressions")
		}
		return nil
	},
}
