package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/security"
)

var securityLimit int

func init() {
	securityCmd.AddCommand(securityDuplicatesCmd)
	securityDuplicatesCmd.Flags().IntVar(&securityLimit, "limit", 0, "Maximum groups to show (0 = all)")
}

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Vault health checks",
}

var securityDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find records reusing the same password, PIN, or card number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		records, err := s.Records()
		if err != nil {
			return err
		}
		checker, err := security.NewChecker()
		if err != nil {
			return err
		}

		groups := checker.FindDuplicates(records, securityLimit)
		if len(groups) == 0 {
			fmt.Println("No duplicate secrets found.")
			return nil
		}
		for i, g := range groups {
			fmt.Printf("Group %d: %d records share a secret\n", i+1, g.Count)
			for j, id := range g.IDs {
				fmt.Printf("  %s  %s\n", id, g.Titles[j])
			}
		}
		fmt.Printf("\n%d duplicate group(s). Consider rotating %s.\n",
			len(groups), pluralize(len(groups), "this secret", "these secrets"))
		return nil
	},
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
