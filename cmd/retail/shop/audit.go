package shop

import (
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/spf13/cobra"
)

// AuditCmd prints the audit log oldest first.
func AuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			entries, err := svc.Audit(cmd.Context())
			if err != nil {
				return err
			}
			return internal.Render(cmd, entries)
		},
	}
}
