// Package publish serves an exported artifact directory on a local,
// ephemeral HTTP endpoint and opens it in the user's browser.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Defaults for Config.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8000
	DefaultScan         = 10
	DefaultReadyTimeout = time.Second
)

// PublisherError reports a serving or browser-launch failure. It never
// invalidates an artifact that was already written.
type PublisherError struct {
	Op  string
	Err error
}

func (e *PublisherError) Error() string {
	return fmt.Sprintf("publish: %s: %v", e.Op, e.Err)
}

func (e *PublisherError) Unwrap() error { return e.Err }

// Config controls Serve.
type Config struct {
	Host string
	// Port is tried first, then the following Scan-1 ports. Zero lets the
	// OS pick.
	Port         int
	Scan         int
	ReadyTimeout time.Duration
	// Tiles, when set, is mounted at TileProxyRoute.
	Tiles *TileProxy
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Scan <= 0 {
		c.Scan = DefaultScan
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	return c
}

// Server is a running publisher.
type Server struct {
	dir  string
	host string
	port int
	srv  *http.Server
	done chan struct{}
	err  error
}

// Serve starts serving dir in the background and returns once the server
// answers its health check or ReadyTimeout elapses. Cancelling ctx shuts the
// server down; otherwise it runs until the process exits.
func Serve(ctx context.Context, dir string, cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &PublisherError{Op: "serve", Err: err}
	}
	if !info.IsDir() {
		return nil, &PublisherError{Op: "serve", Err: eris.Errorf("%s is not a directory", dir)}
	}

	ln, port, err := listen(cfg.Host, cfg.Port, cfg.Scan)
	if err != nil {
		return nil, err
	}

	s := &Server{
		dir:  dir,
		host: cfg.Host,
		port: port,
		srv: &http.Server{
			Handler:           Router(dir, cfg.Tiles),
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.err = &PublisherError{Op: "serve", Err: err}
			zap.L().Error("publish: server stopped", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.srv.Shutdown(shutdownCtx)
		case <-s.done:
		}
	}()

	if err := s.waitReady(ctx, cfg.ReadyTimeout); err != nil {
		_ = s.srv.Close()
		return nil, &PublisherError{Op: "ready", Err: err}
	}

	zap.L().Info("publish: serving",
		zap.String("dir", dir),
		zap.String("addr", ln.Addr().String()),
	)
	return s, nil
}

// listen binds the first free port in [preferred, preferred+scan).
func listen(host string, preferred, scan int) (net.Listener, int, error) {
	if preferred == 0 {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, 0, &PublisherError{Op: "listen", Err: err}
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}

	var lastErr error
	for p := preferred; p < preferred+scan; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			if p != preferred {
				zap.L().Info("publish: preferred port busy", zap.Int("preferred", preferred), zap.Int("port", p))
			}
			return ln, p, nil
		}
		lastErr = err
	}
	return nil, 0, &PublisherError{
		Op:  "listen",
		Err: eris.Wrapf(lastErr, "no free port in %d-%d", preferred, preferred+scan-1),
	}
}

func (s *Server) waitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: timeout}
	health := s.base() + "/healthz"
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, health, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "server not ready")
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (s *Server) base() string {
	return "http://" + net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Port is the bound port.
func (s *Server) Port() int { return s.port }

// URL returns the address of a file inside the served directory.
func (s *Server) URL(name string) string {
	return s.base() + "/" + url.PathEscape(name)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.srv.Close()
}

// Wait blocks until the server stops and returns its failure, if any.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

// Router builds the publisher's HTTP handler: health check, optional tile
// proxy, and static files from dir.
func Router(dir string, tiles *TileProxy) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]any{"status": "ok"}
		if tiles != nil && tiles.cache != nil {
			status["tile_cache"] = tiles.cache.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	if tiles != nil {
		r.Get(TileProxyRoute, tiles.ServeHTTP)
	}

	files := http.FileServer(http.Dir(dir))
	r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, req)
	}))
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("publish: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
