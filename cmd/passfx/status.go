package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveVaultDir()
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()

		fmt.Printf("Vault directory: %s\n", dir)
		if !s.Exists() {
			fmt.Println("Vault:           not initialized")
			return nil
		}
		fmt.Println("Vault:           initialized")
		fmt.Printf("State:           %s\n", s.State())
		if n := s.FailureCount(); n > 0 {
			fmt.Printf("Failed unlocks:  %d\n", n)
		}
		fmt.Printf("Auto-lock:       %d minute(s)\n", cfg.AutoLockMinutes)
		fmt.Printf("Lockout:         after %d failures, capped at %ds\n", cfg.LockoutThreshold, cfg.MaxLockoutSeconds)

		// Record counts need the key.
		if !confirm("Unlock to show record counts?") {
			return nil
		}
		if err := ensureUnlocked(s); err != nil {
			return err
		}
		stats, err := s.Stats()
		if err != nil {
			return err
		}
		var total int
		fmt.Println("Records:")
		for _, k := range vault.Kinds() {
			fmt.Printf("  %-9s %d\n", k, stats[k])
			total += stats[k]
		}
		fmt.Printf("  %-9s %d\n", "total", total)
		return nil
	},
}
