package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteForce bool

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		r, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if !deleteForce && !confirm(fmt.Sprintf("Delete %s %q?", r.Kind(), r.Title())) {
			fmt.Println("Aborted.")
			return nil
		}
		if err := s.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}
