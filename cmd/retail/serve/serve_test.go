package serve

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/kcmvp/retail/app"
	"github.com/kcmvp/retail/cmd/internal"
	"github.com/kcmvp/retail/internal/boot"
	"github.com/kcmvp/retail/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_StopsWithContext(t *testing.T) {
	for _, engine := range []string{server.Gin, server.Echo, server.Fiber} {
		t.Run(engine, func(t *testing.T) {
			rs := app.Load()
			require.NoError(t, rs.Error())
			s := rs.MustGet()
			s.Blob.Root = t.TempDir()
			rt, err := boot.Open(context.Background(), s, app.Discard())
			require.NoError(t, err)
			defer func() { assert.NoError(t, rt.Close()) }()

			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			cmd := ServeCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"--engine", engine, "--addr", "127.0.0.1:0"})
			assert.NoError(t, cmd.ExecuteContext(internal.WithRuntime(ctx, rt)))
		})
	}
}

func TestServe_RequiresLocalRuntime(t *testing.T) {
	cmd := ServeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	err := cmd.ExecuteContext(internal.WithRuntime(context.Background(), &boot.Runtime{}))
	assert.ErrorIs(t, err, boot.ErrRemote)
}
