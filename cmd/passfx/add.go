package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/crypto"
	"github.com/passfx/passfx/pkg/vault"
)

var addEnvFile string

func init() {
	addCmd.AddCommand(addEmailCmd)
	addCmd.AddCommand(addPhoneCmd)
	addCmd.AddCommand(addCardCmd)
	addCmd.AddCommand(addNoteCmd)
	addCmd.AddCommand(addEnvCmd)
	addCmd.AddCommand(addRecoveryCmd)

	addEnvCmd.Flags().StringVarP(&addEnvFile, "file", "f", "", "Read content from an env file instead of stdin")
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a credential to the vault",
}

// addRecord unlocks the session, stores the record, and reports it.
func addRecord(r vault.Record) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer closeSession()
	if err := ensureUnlocked(s); err != nil {
		return err
	}
	if err := s.Add(r); err != nil {
		return fmt.Errorf("failed to add record: %w", err)
	}
	fmt.Printf("Added %s %q (id %s)\n", r.Kind(), r.Title(), r.Ref().ID)
	return nil
}

var addEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Add an email/password credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, err := readLine("Label: ")
		if err != nil {
			return err
		}
		email, err := readLine("Email: ")
		if err != nil {
			return err
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)
		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewEmailCredential(label, email, string(password), notes))
	},
}

var addPhoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Add a phone/PIN credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, err := readLine("Label: ")
		if err != nil {
			return err
		}
		phone, err := readLine("Phone number: ")
		if err != nil {
			return err
		}
		pin, err := readPassword("PIN: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(pin)
		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewPhoneCredential(label, phone, string(pin), notes))
	},
}

var addCardCmd = &cobra.Command{
	Use:   "card",
	Short: "Add a credit card",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, err := readLine("Label: ")
		if err != nil {
			return err
		}
		number, err := readPassword("Card number: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(number)
		expiry, err := readLine("Expiry (MM/YY): ")
		if err != nil {
			return err
		}
		cvv, err := readPassword("CVV: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(cvv)
		holder, err := readLine("Cardholder name: ")
		if err != nil {
			return err
		}
		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewCreditCard(label, string(number), expiry, string(cvv), holder, notes))
	},
}

var addNoteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add a secure note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, err := readLine("Title: ")
		if err != nil {
			return err
		}
		content, err := readLine("Content: ")
		if err != nil {
			return err
		}
		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewNoteEntry(title, content, notes))
	},
}

var addEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Add an environment file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, err := readLine("Title: ")
		if err != nil {
			return err
		}

		var filename, content string
		if addEnvFile != "" {
			data, err := os.ReadFile(addEnvFile)
			if err != nil {
				return fmt.Errorf("failed to read env file: %w", err)
			}
			filename = addEnvFile
			content = string(data)
		} else {
			filename, err = readLine("Filename: ")
			if err != nil {
				return err
			}
			content, err = readLine("Content: ")
			if err != nil {
				return err
			}
		}

		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewEnvEntry(title, filename, content, notes))
	},
}

var addRecoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Add recovery codes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, err := readLine("Title: ")
		if err != nil {
			return err
		}
		content, err := readLine("Codes: ")
		if err != nil {
			return err
		}
		notes, err := readLine("Notes (optional): ")
		if err != nil {
			return err
		}
		return addRecord(vault.NewRecoveryEntry(title, content, notes))
	},
}
