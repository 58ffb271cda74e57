// Package main provides the passfx CLI application.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/passfx/passfx/internal/config"
	"github.com/passfx/passfx/pkg/audit"
	"github.com/passfx/passfx/pkg/crypto"
	"github.com/passfx/passfx/pkg/lockout"
	"github.com/passfx/passfx/pkg/storage"
	"github.com/passfx/passfx/pkg/vault"
)

var (
	vaultDir string
	cfg      *config.Config
	sess     *vault.Session
)

var rootCmd = &cobra.Command{
	Use:   "passfx",
	Short: "passfx is a local, offline password vault",
	Long: `An encrypted single-user credential store.

All data lives in one encrypted file under the vault directory
(default ~/.passfx). Nothing ever leaves the machine.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault-dir", "", "Vault directory (default ~/.passfx)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(securityCmd)
}

// resolveVaultDir returns the target vault directory without creating it.
func resolveVaultDir() (string, error) {
	if vaultDir != "" {
		return vaultDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".passfx"), nil
}

// openSession loads the configuration and acquires the vault lock.
// The caller owns the returned session; closeSession releases it.
func openSession() (*vault.Session, error) {
	dir, err := resolveVaultDir()
	if err != nil {
		return nil, err
	}
	cfg, err = config.Load(dir)
	if err != nil {
		return nil, err
	}

	s, err := vault.NewSession(vault.Config{
		Dir:               dir,
		AutoLockTimeout:   time.Duration(cfg.AutoLockMinutes) * time.Minute,
		LockoutThreshold:  cfg.LockoutThreshold,
		MaxLockoutSeconds: cfg.MaxLockoutSeconds,
		Audit:             audit.NewLogger(filepath.Join(dir, "audit")),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyOpen) {
			return nil, fmt.Errorf("vault is already open in another process")
		}
		return nil, err
	}
	sess = s
	return s, nil
}

func closeSession() {
	if sess != nil {
		sess.Close()
		sess = nil
	}
}

// ensureUnlocked prompts for the master password and unlocks the
// session. A lockout is reported with the remaining wait.
func ensureUnlocked(s *vault.Session) error {
	if s.State() == vault.StateUnlocked {
		return nil
	}
	if !s.Exists() {
		return fmt.Errorf("no vault found; run 'passfx init' first")
	}

	password, err := readPassword("Enter master password: ")
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(password)

	if err := s.Unlock(password); err != nil {
		var locked *lockout.LockedOutError
		if errors.As(err, &locked) {
			return fmt.Errorf("too many failed attempts; try again in %s", locked.Remaining.Round(time.Second))
		}
		return err
	}
	return nil
}

// readPassword reads a password from the terminal with echo disabled.
func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readLine reads one line from stdin, trimming the newline.
func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(prompt string) bool {
	answer, err := readLine(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
