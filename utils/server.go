package utils

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 3 * time.Minute // sprint creation waits on the decomposition pipeline
	DefaultShutdownTimeout = 30 * time.Second
)

// GraceServer serves handler on addr until ctx is cancelled, then drains in-flight requests.
// onShutdown hooks run after the listener closes, before GraceServer returns.
func GraceServer(ctx context.Context, addr string, handler http.Handler, onShutdown ...func()) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	Sugar.Info("shutdown requested, draining HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server shutdown success")
	}
	for _, hook := range onShutdown {
		hook()
	}
	return err
}
