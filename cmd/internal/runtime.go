// Package internal carries the runtime shared by the retail subcommands.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/kcmvp/retail/facade"
	"github.com/kcmvp/retail/internal/boot"
	"github.com/spf13/cobra"
)

var ErrNoRuntime = errors.New("runtime not initialized")

type runtimeKey struct{}

// WithRuntime stores rt in ctx for the subcommands.
func WithRuntime(ctx context.Context, rt *boot.Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

func Runtime(cmd *cobra.Command) (*boot.Runtime, error) {
	if cmd.Context() == nil {
		return nil, ErrNoRuntime
	}
	rt, ok := cmd.Context().Value(runtimeKey{}).(*boot.Runtime)
	if !ok || rt == nil {
		return nil, ErrNoRuntime
	}
	return rt, nil
}

func Service(cmd *cobra.Command) (facade.Service, error) {
	rt, err := Runtime(cmd)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// Render writes v to stdout as indented JSON.
func Render(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// Done reports success on stderr so stdout stays machine readable.
func Done(cmd *cobra.Command, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func Warn(cmd *cobra.Command, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
