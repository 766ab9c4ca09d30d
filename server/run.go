package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// HTTPHandler builds the named engine as a plain http.Handler.
func HTTPHandler(engine string, h *Handler) (http.Handler, error) {
	switch engine {
	case Gin, "":
		return NewGin(h), nil
	case Echo:
		return NewEcho(h), nil
	case Fiber:
		return adaptor.FiberApp(NewFiber(h)), nil
	default:
		return nil, fmt.Errorf("unknown server engine %q", engine)
	}
}

// Run serves the named engine on addr until ctx is done, then shuts it down gracefully.
func Run(ctx context.Context, engine, addr string, h *Handler) error {
	h.logger.Info("server starting", "engine", engine, "addr", addr)
	if engine == Fiber {
		return runFiber(ctx, addr, NewFiber(h))
	}
	handler, err := HTTPHandler(engine, h)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runFiber(ctx context.Context, addr string, app *fiber.App) error {
	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
