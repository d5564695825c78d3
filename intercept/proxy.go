package intercept

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

type ProxyConfig struct {
	Logger *slog.Logger

	// Upstream is the scheme://host the proxy forwards to.
	Upstream string

	Tap Tap

	// ShouldTransform selects which response bodies are handed to the tap.
	// Everything else streams through untouched.
	ShouldTransform func(url string) bool
}

// Proxy is a forwarding HTTP host for a Tap: it relays every request to the
// upstream host, and for selected responses buffers the body, lets the tap
// rewrite it, and serves the rewritten bytes in its place.
type Proxy struct {
	logger    *slog.Logger
	upstream  *url.URL
	tap       Tap
	transform func(string) bool
	client    *http.Client
	echo      *echo.Echo
}

func NewProxy(cfg ProxyConfig) (*Proxy, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream url %q needs scheme and host", cfg.Upstream)
	}

	p := &Proxy{
		logger:    cfg.Logger.With("component", "proxy"),
		upstream:  upstream,
		tap:       cfg.Tap,
		transform: cfg.ShouldTransform,
		client: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   60 * time.Second,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(p.logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("feedsieve_proxy"))
	e.Any("/*", p.handle)
	p.echo = e
	return p, nil
}

func (p *Proxy) Start(addr string) error {
	p.logger.Info("starting intercepting proxy", "bind", addr, "upstream", p.upstream.String())
	return p.echo.Start(addr)
}

func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.echo.Shutdown(ctx)
}

// Handler exposes the proxy as an http.Handler, for tests.
func (p *Proxy) Handler() http.Handler {
	return p.echo
}

func (p *Proxy) handle(c echo.Context) error {
	req := c.Request()
	target := *p.upstream
	target.Path = req.URL.Path
	target.RawQuery = req.URL.RawQuery
	targetURL := target.String()

	p.tap.OnRequestStart(targetURL)

	out, err := http.NewRequestWithContext(req.Context(), req.Method, targetURL, req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	copyHeaders(out.Header, req.Header)
	// force an identity body from upstream so the tap sees plain bytes
	out.Header.Del("Accept-Encoding")
	out.Host = p.upstream.Host

	resp, err := p.client.Do(out)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	defer resp.Body.Close()

	wantsTransform := p.transform != nil && p.transform(targetURL) &&
		resp.StatusCode == http.StatusOK

	header := c.Response().Header()
	copyHeaders(header, resp.Header)
	header.Del("Content-Encoding")

	if !wantsTransform {
		c.Response().WriteHeader(resp.StatusCode)
		_, err = io.Copy(c.Response(), resp.Body)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	body = p.tap.OnResponseBody(targetURL, body)

	header.Set("Content-Length", strconv.Itoa(len(body)))
	c.Response().WriteHeader(resp.StatusCode)
	_, err = c.Response().Write(body)
	return err
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
