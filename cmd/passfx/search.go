package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search records by label, title, and other non-sensitive fields",
	Long: `Search records case-insensitively.

Only non-sensitive fields are matched: labels, titles, emails, phone
numbers, cardholder names, filenames, and notes. Passwords, PINs, card
numbers, and protected content are never searched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		matches, err := s.Search(args[0])
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tTITLE\tDETAIL")
		for _, r := range matches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Ref().ID, r.Kind(), r.Title(), recordDetail(r))
		}
		return w.Flush()
	},
}
