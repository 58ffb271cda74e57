package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/backup"
	"github.com/passfx/passfx/pkg/crypto"
)

var (
	restoreForce  bool
	restoreVerify bool
)

func init() {
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Overwrite an existing vault")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify-only", false, "Verify the backup without restoring")
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore a vault from an encrypted backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveVaultDir()
		if err != nil {
			return err
		}

		password, err := readPassword("Enter backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		if restoreVerify {
			info, err := backup.Verify(args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("Backup OK: format v%d, created %s, %d records\n",
				info.Version, info.CreatedAt.Format("2006-01-02 15:04:05"), info.RecordCount)
			return nil
		}

		if restoreForce && !confirm("Overwrite the existing vault with the backup?") {
			fmt.Println("Aborted.")
			return nil
		}

		// Hold the vault lock so no other process writes during the
		// restore.
		if _, err := openSession(); err != nil {
			return err
		}
		defer closeSession()

		info, err := backup.Restore(args[0], password, dir, restoreForce)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d record(s) into %s (backup created %s)\n",
			info.RecordCount, dir, info.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
