package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/crypto"
)

var importReplace bool

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace the whole vault instead of merging")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from a plaintext JSON export",
	Long: `Import records from a passfx export file.

By default records are merged: entries whose IDs already exist in the
vault are skipped. With --replace the vault contents are replaced
wholesale.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}
		defer crypto.SecureWipe(data)

		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		if importReplace && !confirm("Replace ALL vault contents with the import?") {
			fmt.Println("Aborted.")
			return nil
		}

		imported, err := s.Deserialize(data, !importReplace)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d record(s)\n", imported)
		return nil
	},
}
