// Package shop holds the retail subcommands that work through a facade.Service, so they behave
// the same against the local store and a remote server.
package shop

import (
	"errors"
	"fmt"
	"os"

	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/entity"
	"github.com/kcmvp/retail/facade"
	"github.com/kcmvp/retail/order"
	"github.com/kcmvp/retail/store"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// readOnly builds the list, get and delete subcommands shared by customers and products.
func readOnly[E entity.Entity[E]](noun string, pick func(facade.Service) facade.Collection[E]) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "list",
			Short: fmt.Sprintf("List all %ss.", noun),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := internal.Service(cmd)
				if err != nil {
					return err
				}
				items, err := pick(svc).List(cmd.Context())
				if err != nil {
					return err
				}
				return internal.Render(cmd, items)
			},
		},
		{
			Use:   "get <id>",
			Short: fmt.Sprintf("Show one %s.", noun),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := internal.Service(cmd)
				if err != nil {
					return err
				}
				item, err := pick(svc).Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return internal.Render(cmd, item)
			},
		},
		{
			Use:   "delete <id>",
			Short: fmt.Sprintf("Delete a %s.", noun),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := internal.Service(cmd)
				if err != nil {
					return err
				}
				if err := pick(svc).Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				internal.Done(cmd, "%s %s deleted", noun, args[0])
				return nil
			},
		},
	}
}

// save creates e, or updates it when id is set. An update applies the flags to a fresh read of the
// entity. With force a version conflict reads it again and reapplies, at most order.DefaultRetries
// times, so changes made in between are kept rather than overwritten.
func save[E entity.Entity[E]](cmd *cobra.Command, col facade.Collection[E], id string, force bool, apply func(E) (E, error)) (E, error) {
	if id == "" {
		e, err := apply(lo.Empty[E]())
		if err != nil {
			return e, err
		}
		return col.Create(cmd.Context(), e)
	}
	retries := lo.Ternary(force, order.DefaultRetries, 0)
	for attempt := 0; ; attempt++ {
		current, err := col.Get(cmd.Context(), id)
		if err != nil {
			return current, err
		}
		e, err := apply(current)
		if err != nil {
			return e, err
		}
		saved, err := col.Update(cmd.Context(), e)
		if errors.Is(err, store.ErrVersionConflict) && attempt < retries {
			internal.Warn(cmd, "%s changed since it was read, retrying", id)
			continue
		}
		return saved, err
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
