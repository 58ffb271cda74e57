package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log HMAC chain",
	Long: `Verify the tamper-evidence chain of the audit log.

The chain key is derived from the master key, so verification requires
unlocking the vault.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		count, err := s.VerifyAuditLog()
		if err != nil {
			return fmt.Errorf("audit verification FAILED after %d event(s): %w", count, err)
		}
		fmt.Printf("Audit log OK: %d event(s) verified\n", count)
		return nil
	},
}
