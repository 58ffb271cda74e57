package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/internal/config"
	"github.com/passfx/passfx/pkg/crypto"
	"github.com/passfx/passfx/pkg/vault"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault",
	Long: `Create a new encrypted vault in the vault directory.

The master password is the only way in. It is never stored and cannot
be recovered; losing it means losing the vault contents.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()

		if s.Exists() {
			return fmt.Errorf("a vault already exists; refusing to overwrite")
		}

		fmt.Println("Initializing new vault...")
		password, err := readPassword("Enter master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		confirmPw, err := readPassword("Confirm master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(confirmPw)

		if string(password) != string(confirmPw) {
			return fmt.Errorf("passwords do not match")
		}
		if len(password) == 0 {
			return fmt.Errorf("password cannot be empty")
		}

		if err := s.Create(password); err != nil {
			if errors.Is(err, vault.ErrVaultExists) {
				return fmt.Errorf("a vault already exists; refusing to overwrite")
			}
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		dir, _ := resolveVaultDir()
		if err := config.Save(dir, config.Default()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to write default config: %v\n", err)
		}

		fmt.Printf("Vault initialized at %s\n", dir)
		return nil
	},
}
