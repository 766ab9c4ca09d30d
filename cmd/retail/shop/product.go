package shop

import (
	"path/filepath"

	"github.com/kcmvp/retail/blob"
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/facade"
	"github.com/spf13/cobra"
)

func products(svc facade.Service) facade.Collection[entity.Product] { return svc.Products() }

// ProductCmd manages the catalogue.
func ProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Create, update, list and delete products.",
	}
	cmd.AddCommand(readOnly("product", products)...)
	cmd.AddCommand(productSaveCmd("create", false), productSaveCmd("update <id>", true), productImageCmd())
	return cmd
}

func productSaveCmd(use string, update bool) *cobra.Command {
	var p entity.Product
	var price string
	var force bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Save a product; an update only changes the flags given.",
		Args:  cobra.ExactArgs(lenIf(update)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			saved, err := save(cmd, svc.Products(), firstArg(args), force, func(cur entity.Product) (entity.Product, error) {
				if changed("price") {
					m, err := entity.ParseMoney(price)
					if err != nil {
						return cur, err
					}
					cur.Price = m
				}
				if changed("name") {
					cur.Name = p.Name
				}
				if changed("description") {
					cur.Description = p.Description
				}
				if changed("stock") {
					cur.StockAvailable = p.StockAvailable
				}
				if changed("image") {
					cur.ImageURL = p.ImageURL
				}
				return cur, nil
			})
			if err != nil {
				return err
			}
			internal.Done(cmd, "product %s saved", saved.ID)
			return internal.Render(cmd, saved)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Name, "name", "", "product name")
	f.StringVar(&p.Description, "description", "", "description")
	f.StringVar(&price, "price", "", "unit price, at most two decimals")
	f.IntVar(&p.StockAvailable, "stock", 0, "units in stock")
	f.StringVar(&p.ImageURL, "image", "", "image URL or blob reference")
	if update {
		f.BoolVar(&force, "force", false, "reapply the changes when the product was modified concurrently")
	} else {
		_ = cmd.MarkFlagRequired("name")
		_ = cmd.MarkFlagRequired("price")
	}
	return cmd
}

// productImageCmd uploads a picture and points the product at it.
func productImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "image <id> <file>",
		Short: "Upload a product image and attach it to the product.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := internal.Service(cmd)
			if err != nil {
				return err
			}
			data, err := readFile(args[1])
			if err != nil {
				return err
			}
			p, err := svc.Products().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ref, err := svc.Upload(cmd.Context(), blob.ProductImages, filepath.Base(args[1]), data)
			if err != nil {
				return err
			}
			p.ImageURL = ref
			p, err = svc.Products().Update(cmd.Context(), p)
			if err != nil {
				return err
			}
			internal.Done(cmd, "image %s attached to product %s", ref, p.ID)
			return internal.Render(cmd, p)
		},
	}
}
