package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/vault"
)

var showReveal bool

func init() {
	showCmd.Flags().BoolVar(&showReveal, "reveal", false, "Print secret values in the clear")
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a record",
	Long:  "Show a record. Secrets stay masked unless --reveal is given.",
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
		printRecord(r, showReveal)
		return nil
	},
}

const masked = "********"

func secret(value string, reveal bool) string {
	if reveal {
		return value
	}
	return masked
}

func printRecord(r vault.Record, reveal bool) {
	fmt.Printf("ID:      %s\n", r.Ref().ID)
	fmt.Printf("Kind:    %s\n", r.Kind())

	switch v := r.(type) {
	case *vault.EmailCredential:
		fmt.Printf("Label:    %s\n", v.Label)
		fmt.Printf("Email:    %s\n", v.Email)
		fmt.Printf("Password: %s\n", secret(v.Password, reveal))
		printNotes(v.Notes)
	case *vault.PhoneCredential:
		fmt.Printf("Label: %s\n", v.Label)
		fmt.Printf("Phone: %s\n", v.Phone)
		fmt.Printf("PIN:   %s\n", secret(v.PIN, reveal))
		printNotes(v.Notes)
	case *vault.CreditCard:
		fmt.Printf("Label:  %s\n", v.Label)
		if reveal {
			fmt.Printf("Number: %s\n", v.Number)
		} else {
			fmt.Printf("Number: %s\n", v.MaskedNumber())
		}
		fmt.Printf("Expiry: %s\n", v.Expiry)
		fmt.Printf("CVV:    %s\n", secret(v.CVV, reveal))
		fmt.Printf("Holder: %s\n", v.Holder)
		printNotes(v.Notes)
	case *vault.NoteEntry:
		fmt.Printf("Title:   %s\n", v.NoteTitle)
		fmt.Printf("Content: %s\n", secret(v.Content, reveal))
		printNotes(v.Notes)
	case *vault.EnvEntry:
		fmt.Printf("Title:    %s\n", v.EnvTitle)
		fmt.Printf("Filename: %s\n", v.Filename)
		fmt.Printf("Content:  %s\n", secret(v.Content, reveal))
		printNotes(v.Notes)
	case *vault.RecoveryEntry:
		fmt.Printf("Title: %s\n", v.RecTitle)
		fmt.Printf("Codes: %s\n", secret(v.Content, reveal))
		printNotes(v.Notes)
	}

	fmt.Printf("Created: %s\n", r.Ref().CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", r.Ref().UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printNotes(notes string) {
	if notes != "" {
		fmt.Printf("Notes: %s\n", notes)
	}
}
