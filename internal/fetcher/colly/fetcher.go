// Package collyfetcher implements weather.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/weather"
)

// Config controls collector and circuit breaker behavior.
type Config struct {
	BaseURL            string
	UserAgent          string
	Timeout            time.Duration
	BreakerMinRequests uint32
	BreakerCooldown    time.Duration
	BreakerFailureRate float64
}

// Fetcher performs one GET per Fetch call against the provider page. A
// circuit breaker sits in front of the collector so a persistently failing
// site fails fast locally instead of being hammered every interval.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	breaker       *gobreaker.CircuitBreaker
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = 3
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 2 * time.Minute
	}
	if cfg.BreakerFailureRate == 0 {
		cfg.BreakerFailureRate = 0.6
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// The same page is fetched every interval; revisit tracking and robots
	// probing are crawler concerns that do not apply here.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true

	settings := gobreaker.Settings{
		Name:        "weerplaza",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinRequests && failureRatio >= cfg.BreakerFailureRate
		},
		IsSuccessful: func(err error) bool {
			// A 404 is a provider answer about the location path, not an
			// outage; it must not trip the breaker.
			return err == nil || errors.Is(err, weather.ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		breaker:       gobreaker.NewCircuitBreaker(settings),
		logger:        logger,
	}
}

// PageURL builds the canonical provider URL for a location path. The
// provider redirects paths without a trailing slash, so one is ensured.
func (f *Fetcher) PageURL(locationPath string) string {
	base := strings.TrimSuffix(f.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/%s/", base, strings.Trim(locationPath, "/"))
}

// Fetch executes a single HTTP GET for the location page. It never retries;
// retry policy belongs to the coordinator.
func (f *Fetcher) Fetch(ctx context.Context, locationPath string) (weather.Page, error) {
	url := f.PageURL(locationPath)

	result, err := f.breaker.Execute(func() (any, error) {
		return f.fetchOnce(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return weather.Page{}, fmt.Errorf("%w: circuit open for %s: %v", weather.ErrFetch, url, err)
		}
		return weather.Page{}, err
	}
	page, ok := result.(weather.Page)
	if !ok {
		return weather.Page{}, fmt.Errorf("%w: unexpected breaker result type", weather.ErrFetch)
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (weather.Page, error) {
	var (
		page     weather.Page
		status   int
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		page = weather.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			FetchedAt:  start,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	visitErr := f.runCollector(ctx, collector, url)
	if errors.Is(visitErr, weather.ErrFetch) {
		// Context cancellation, already classified.
		return weather.Page{}, visitErr
	}
	if visitErr == nil {
		visitErr = fetchErr
	}
	if visitErr != nil {
		if status == http.StatusNotFound {
			return weather.Page{}, fmt.Errorf("%w: %s returned 404, likely invalid location path", weather.ErrNoData, url)
		}
		return weather.Page{}, fmt.Errorf("%w: %s: %v", weather.ErrFetch, url, visitErr)
	}
	if page.StatusCode != http.StatusOK {
		return weather.Page{}, fmt.Errorf("%w: %s returned status %d", weather.ErrFetch, url, page.StatusCode)
	}
	return page, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: fetch canceled: %v", weather.ErrFetch, ctx.Err())
	case err := <-done:
		// Visit surfaces the same error OnError records, HTTP-status
		// failures included; classification happens in fetchOnce where the
		// recorded status code is in scope.
		return err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
