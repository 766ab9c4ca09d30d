package shop

import (
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/facade"
	"github.com/spf13/cobra"
)

func customers(svc facade.Service) facade.Collection[entity.Customer] { return svc.Customers() }

// CustomerCmd manages customers.
func CustomerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Create, update, list and delete customers.",
	}
	cmd.AddCommand(readOnly("customer", customers)...)
	cmd.AddCommand(customerSaveCmd("create", false), customerSaveCmd("update <id>", true))
	return cmd
}

func customerSaveCmd(use string, update bool) *cobra.Command {
	var c entity.Customer
	var force bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Save a customer; an update only changes the flags given.",
		Args:  cobra.ExactArgs(lenIf(update)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			saved, err := save(cmd, svc.Customers(), firstArg(args), force, func(cur entity.Customer) (entity.Customer, error) {
				if changed("username") {
					cur.Username = c.Username
				}
				if changed("email") {
					cur.Email = c.Email
				}
				if changed("name") {
					cur.Name = c.Name
				}
				if changed("surname") {
					cur.Surname = c.Surname
				}
				if changed("address") {
					cur.ShippingAddress = c.ShippingAddress
				}
				return cur, nil
			})
			if err != nil {
				return err
			}
			internal.Done(cmd, "customer %s saved", saved.ID)
			return internal.Render(cmd, saved)
		},
	}
	f := cmd.Flags()
	f.StringVar(&c.Username, "username", "", "login name")
	f.StringVar(&c.Email, "email", "", "email address")
	f.StringVar(&c.Name, "name", "", "first name")
	f.StringVar(&c.Surname, "surname", "", "last name")
	f.StringVar(&c.ShippingAddress, "address", "", "shipping address")
	if update {
		f.BoolVar(&force, "force", false, "reapply the changes when the customer was modified concurrently")
	} else {
		_ = cmd.MarkFlagRequired("username")
		_ = cmd.MarkFlagRequired("email")
	}
	return cmd
}

func lenIf(update bool) int {
	if update {
		return 1
	}
	return 0
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
