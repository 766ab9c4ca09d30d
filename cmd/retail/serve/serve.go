// Package serve runs the HTTP API together with the audit worker.
package serve

import (
	"context"
	"errors"
	"sync"

	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/server"
	"github.com/spf13/cobra"
)

// ServeCmd serves the local store over HTTP until interrupted.
func ServeCmd() *cobra.Command {
	var engine, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retail API and record notifications in the audit log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := internal.Runtime(cmd)
			if err != nil {
				return err
			}
			worker, err := rt.AuditWorker()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("engine") {
				engine = rt.Settings.Server.Engine
			}
			if !cmd.Flags().Changed("addr") {
				addr = rt.Settings.Server.Addr
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			var wg sync.WaitGroup
			var serveErr, workErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				defer cancel()
				serveErr = server.Run(ctx, engine, addr, rt.Handler())
			}()
			go func() {
				defer wg.Done()
				defer cancel()
				workErr = worker.Run(ctx)
			}()
			wg.Wait()
			return errors.Join(serveErr, workErr)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", server.Gin, "http engine: gin, echo or fiber")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
