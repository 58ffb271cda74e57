package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/passfx/passfx/pkg/vault"
)

var listCmd = &cobra.Command{
	Use:       "list [kind]",
	Short:     "List records, optionally filtered by kind",
	Long:      "List records. Kind is one of: email, phone, card, note, env, recovery.",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer closeSession()
		if err := ensureUnlocked(s); err != nil {
			return err
		}

		var records []vault.Record
		if len(args) == 1 {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			records, err = s.RecordsByKind(kind)
			if err != nil {
				return err
			}
		} else {
			records, err = s.Records()
			if err != nil {
				return err
			}
		}

		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tTITLE\tDETAIL\tUPDATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.Ref().ID, r.Kind(), r.Title(), recordDetail(r),
				r.Ref().UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// recordDetail returns a non-sensitive one-line summary.
func recordDetail(r vault.Record) string {
	switch v := r.(type) {
	case *vault.EmailCredential:
		return v.Email
	case *vault.PhoneCredential:
		return v.Phone
	case *vault.CreditCard:
		return v.MaskedNumber()
	case *vault.EnvEntry:
		return v.Filename
	default:
		return ""
	}
}

func kindNames() []string {
	names := make([]string, 0, len(vault.Kinds()))
	for _, k := range vault.Kinds() {
		names = append(names, string(k))
	}
	return names
}

func parseKind(s string) (vault.Kind, error) {
	for _, k := range vault.Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (one of: email, phone, card, note, env, recovery)", s)
}
