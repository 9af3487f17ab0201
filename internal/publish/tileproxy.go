package publish

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/flightglobe/internal/resilience"
)

// TileProxyRoute is both the chi route of the proxy and the URL template an
// artifact uses as its OSM source when tiles go through the publisher.
const TileProxyRoute = "/tiles/osm/{z}/{x}/{y}.png"

const (
	maxZoom   = 24
	userAgent = "flightglobe/1.0 (+local trajectory viewer)"
)

// TileProxy relays raster tiles from an upstream XYZ template through a
// cache, a rate limiter and a circuit breaker.
type TileProxy struct {
	template string
	client   *http.Client
	cache    *TileCache
	limiter  *rate.Limiter
	backoff  resilience.Backoff
	breaker  *resilience.Breaker
}

// TileProxyOption configures a TileProxy.
type TileProxyOption func(*TileProxy)

// WithTileCache attaches a cache.
func WithTileCache(c *TileCache) TileProxyOption {
	return func(p *TileProxy) { p.cache = c }
}

// WithRateLimit caps upstream requests per second. Zero disables limiting.
func WithRateLimit(rps float64, burst int) TileProxyOption {
	return func(p *TileProxy) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithBackoff overrides retry behaviour for upstream failures.
func WithBackoff(b resilience.Backoff) TileProxyOption {
	return func(p *TileProxy) { p.backoff = b }
}

// WithBreaker replaces the upstream circuit breaker.
func WithBreaker(b *resilience.Breaker) TileProxyOption {
	return func(p *TileProxy) { p.breaker = b }
}

// NewTileProxy creates a proxy for an upstream {z}/{x}/{y} URL template.
func NewTileProxy(template string, opts ...TileProxyOption) *TileProxy {
	p := &TileProxy{
		template: template,
		client:   &http.Client{Timeout: 30 * time.Second},
		backoff:  resilience.DefaultBackoff(),
		breaker:  resilience.NewBreaker("osm-tiles", 5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch returns one tile from cache or upstream.
func (p *TileProxy) Fetch(ctx context.Context, z, x, y int) ([]byte, error) {
	if p.cache != nil {
		if data := p.cache.Get(z, x, y); data != nil {
			return data, nil
		}
	}

	url := p.tileURL(z, x, y)
	data, err := resilience.Call(ctx, p.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Retry(ctx, p.backoff, "tile-fetch", func(ctx context.Context) ([]byte, error) {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return nil, eris.Wrap(err, "tiles: rate limit wait")
				}
			}
			return p.fetchOnce(ctx, url)
		})
	})
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Put(z, x, y, data)
	}
	zap.L().Debug("tiles: fetched", zap.String("url", url), zap.Int("bytes", len(data)))
	return data, nil
}

func (p *TileProxy) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "tiles: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "tiles: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("tiles: upstream returned %d for %s", resp.StatusCode, url)
		if resilience.TransientStatus(resp.StatusCode) {
			return nil, &resilience.TransientError{Err: err, StatusCode: resp.StatusCode}
		}
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tiles: read body")
	}
	return data, nil
}

func (p *TileProxy) tileURL(z, x, y int) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(p.template)
}

// ServeHTTP serves a tile routed through TileProxyRoute.
func (p *TileProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || z > maxZoom || x < 0 || y < 0 || x >= 1<<z || y >= 1<<z {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	data, err := p.Fetch(r.Context(), z, x, y)
	if err != nil {
		zap.L().Warn("tiles: upstream fetch failed", zap.Int("z", z), zap.Int("x", x), zap.Int("y", y), zap.Error(err))
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}
