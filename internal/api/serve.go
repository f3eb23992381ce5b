package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// ServeConfig controls the listeners.
type ServeConfig struct {
	Addresses       []string
	MaxConnections  int
	ShutdownTimeout time.Duration
}

// Serve listens on every configured address and serves h until ctx is done
// or any listener fails, then shuts all servers down gracefully.
func Serve(ctx context.Context, h http.Handler, cfg ServeConfig) error {
	if len(cfg.Addresses) == 0 {
		return errors.New("api: no listen address configured")
	}

	listeners := make([]net.Listener, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return fmt.Errorf("api: listen %s: %w", addr, err)
		}
		if cfg.MaxConnections > 0 {
			ln = netutil.LimitListener(ln, cfg.MaxConnections)
		}
		listeners = append(listeners, ln)
	}

	return ServeListeners(ctx, h, listeners, cfg.ShutdownTimeout)
}

// ServeListeners serves h on already-open listeners. Each listener gets its
// own http.Server; they share nothing but the handler.
func ServeListeners(ctx context.Context, h http.Handler, listeners []net.Listener, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ln := range listeners {
		srv := &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info("Windows Service HealthCheck REST API listening", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api: serve %s: %w", ln.Addr(), err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn("graceful shutdown timed out, closing connections", "addr", ln.Addr().String(), "error", err)
				srv.Close()
			}
			return nil
		})
	}

	return g.Wait()
}
