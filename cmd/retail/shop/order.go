package shop

import (
	"path/filepath"

	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/order"
	"github.com/spf13/cobra"
)

// OrderCmd places and tracks orders.
func OrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place, list and update orders.",
	}
	cmd.AddCommand(orderListCmd(), orderGetCmd(), orderPlaceCmd(), orderStatusCmd(), orderDeleteCmd(), orderProofCmd())
	return cmd
}

func orderListCmd() *cobra.Command {
	var f order.Filter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			if status != "" {
				if f.Status, err = entity.ParseStatus(status); err != nil {
					return err
				}
			}
			orders, err := svc.Orders().List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return internal.Render(cmd, orders)
		},
	}
	cmd.Flags().StringVar(&f.CustomerID, "customer", "", "only orders of this customer")
	cmd.Flags().StringVar(&status, "status", "", "only orders in this status")
	return cmd
}

func orderGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			o, err := svc.Orders().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return internal.Render(cmd, o)
		},
	}
}

// orderPlaceCmd exits cleanly when the order was placed but its stock update is still pending;
// the order is printed and the pending cause goes to stderr.
func orderPlaceCmd() *cobra.Command {
	var req order.Request
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place an order for one product.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			o, err := svc.Orders().Place(cmd.Context(), req)
			if placed, pending := order.IsPending(err); pending {
				internal.Warn(cmd, "%v", err)
				return internal.Render(cmd, placed)
			}
			if err != nil {
				return err
			}
			internal.Done(cmd, "order %s placed, total %s", o.ID, o.TotalPrice)
			return internal.Render(cmd, o)
		},
	}
	cmd.Flags().StringVar(&req.CustomerID, "customer", "", "customer id")
	cmd.Flags().StringVar(&req.ProductID, "product", "", "product id")
	cmd.Flags().IntVar(&req.Quantity, "quantity", 1, "units to order")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func orderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> <status>",
		Short:     "Move an order to a new status.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: entity.Statuses(),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			o, err := svc.Orders().UpdateStatus(cmd.Context(), args[0], entity.Status(args[1]))
			if err != nil {
				return err
			}
			internal.Done(cmd, "order %s is %s", o.ID, o.Status)
			return internal.Render(cmd, o)
		},
	}
}

func orderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			if err := svc.Orders().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			internal.Done(cmd, "order %s deleted", args[0])
			return nil
		},
	}
}

// orderProofCmd stores a payment proof for an existing order.
func orderProofCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proof <id> <file>",
		Short: "Upload a payment proof for an order.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			if _, err := svc.Orders().Get(cmd.Context(), args[0]); err != nil {
				return err
			}
			data, err := readFile(args[1])
			if err != nil {
				return err
			}
			ref, err := svc.Upload(cmd.Context(), blob.PaymentProofs, args[0]+"-"+filepath.Base(args[1]), data)
			if err != nil {
				return err
			}
			internal.Done(cmd, "payment proof stored")
			_, err = cmd.OutOrStdout().Write([]byte(ref + "\n"))
			return err
		},
	}
}
