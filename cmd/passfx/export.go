package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/crypto"
)

var (
	exportOutput string
	exportForce  bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "Overwrite existing file")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all records as plaintext JSON",
	Long: `Export the full record set as plaintext JSON.

The output contains every secret IN THE CLEAR. Handle the file
accordingly and delete it when done.`,
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

		data, err := s.Serialize()
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(data)

		if exportOutput == "" {
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}

		if !exportForce {
			if _, err := os.Stat(exportOutput); err == nil {
				return fmt.Errorf("output file already exists: %s (use --force to overwrite)", exportOutput)
			}
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported plaintext records to %s — delete it when done.\n", exportOutput)
		return nil
	},
}
