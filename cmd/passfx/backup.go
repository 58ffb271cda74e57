package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/backup"
	"github.com/passfx/passfx/pkg/crypto"
)

var (
	backupOutput string
	backupForce  bool
)

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path (required)")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite existing file")
	_ = backupCmd.MarkFlagRequired("output")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create an encrypted backup of the vault",
	Long: `Create an encrypted single-file backup.

The backup is sealed with the password you enter here, under a fresh
salt. It can be restored on any machine with 'passfx restore'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !backupForce {
			if _, err := os.Stat(backupOutput); err == nil {
				return fmt.Errorf("output file already exists: %s (use --force to overwrite)", backupOutput)
			}
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		stats, err := s.Stats()
		if err != nil {
			return err
		}
		var count int
		for _, n := range stats {
			count += n
		}

		password, err := readPassword("Enter backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)
		confirmPw, err := readPassword("Confirm backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(confirmPw)
		if string(password) != string(confirmPw) {
			return fmt.Errorf("passwords do not match")
		}

		s.NoteBackup(count)

		// Lock first so the blob on disk is the committed state.
		s.Lock()

		dir, err := resolveVaultDir()
		if err != nil {
			return err
		}
		if err := backup.WriteFile(backupOutput, dir, password, count); err != nil {
			return err
		}
		fmt.Printf("Backup written to %s (%d records)\n", backupOutput, count)
		return nil
	},
}
