package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/kcmvp/retail/app"
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/cmd/retail/serve"
	"github.com/kcmvp/retail/cmd/retail/shop"
	"github.com/kcmvp/retail/internal/boot"
	"github.com/spf13/cobra"
)

// newRootCmd builds the retail command tree. Every subcommand gets a runtime opened from
// application.yml, with --remote switching the facade to an HTTP client.
func newRootCmd() *cobra.Command {
	var remote bool
	var baseURL string
	var rt *boot.Runtime
	root := &cobra.Command{
		Use:   "retail",
		Short: "retail manages customers, products and orders.",
		Long: `retail runs the retail order service (retail serve) and works with its data, either
directly against the configured store or through a running server (--remote).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rs := app.Load()
			if rs.IsError() {
				return rs.Error()
			}
			s := rs.MustGet()
			if cmd.Flags().Changed("remote") {
				s.Facade.Remote = remote
			}
			if cmd.Flags().Changed("base-url") {
				s.Facade.BaseURL = baseURL
			}
			var err error
			rt, err = boot.Open(cmd.Context(), s, app.NewLogger(s.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			cmd.SetContext(internal.WithRuntime(cmd.Context(), rt))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt == nil {
				return nil
			}
			return rt.Close()
		},
	}
	root.PersistentFlags().BoolVar(&remote, "remote", false, "talk to a running server instead of the store")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "API root of the server, e.g. http://localhost:8080/api/")
	root.AddCommand(serve.ServeCmd(), shop.CustomerCmd(), shop.ProductCmd(), shop.OrderCmd(), shop.AuditCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		stop()
		os.Exit(1)
	}
}
