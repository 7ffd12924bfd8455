// Package urlfetch downloads recipe pages and reduces them to plain text for
// the conversion prompt. Structured schema.org Recipe data is preferred over
// the page's visible text when a page carries it.
package urlfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/ports/outbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 2 << 20
	// MaxTextLength bounds the text handed to the prompt
	MaxTextLength = 20000

	userAgent    = "DailyNoatsRecipeFetcher/1.0 (+https://dailynoats.com)"
	maxRedirects = 5
)

// Config holds fetcher settings
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	// AllowPrivateNetworks disables the public-address check. Local use only.
	AllowPrivateNetworks bool
}

// Fetcher implements outbound.RecipeFetcher
type Fetcher struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

var _ outbound.RecipeFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher. instrument, when set, wraps the guarded base
// transport (for example with tracing).
func NewFetcher(cfg Config, instrument func(http.RoundTripper) http.RoundTripper, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	var transport http.RoundTripper = newTransport(cfg)
	if instrument != nil {
		transport = instrument(transport)
	}

	return &Fetcher{
		cfg: cfg,
		http: &http.Client{
			Timeout:       cfg.Timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		logger: logger.Named("urlfetch"),
	}
}

// FetchRecipeText downloads rawURL and returns its recipe text. Every failure
// is an InvalidInput error asking the user to paste the text instead.
func (f *Fetcher) FetchRecipeText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperrors.NewInvalidInputError("Recipe URL must be a full http or https link.")
	}

	if ip := net.ParseIP(u.Hostname()); ip != nil && !f.cfg.AllowPrivateNetworks && blockedIP(ip) {
		return "", blocked(fmt.Errorf("%w: %s", errBlockedAddress, ip))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", apperrors.NewInvalidInputError("Recipe URL must be a full http or https link.").WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8")

	resp, err := f.http.Do(req)
	if errors.Is(err, errBlockedAddress) {
		f.logger.Warn("Recipe URL resolved to a non-public address", zap.String("host", u.Host), zap.Error(err))
		return "", blocked(err)
	}
	if err != nil {
		f.logger.Warn("Recipe page fetch failed", zap.String("host", u.Host), zap.Error(err))
		return "", unreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("Recipe page returned an error status", zap.String("host", u.Host), zap.Int("status", resp.StatusCode))
		return "", unreachable(fmt.Errorf("status %d", resp.StatusCode))
	}

	body := io.LimitReader(resp.Body, f.cfg.MaxBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	var text string
	switch {
	case mediaType == "" || strings.Contains(mediaType, "html"):
		text, err = ExtractText(body)
	case strings.HasPrefix(mediaType, "text/"):
		var raw []byte
		raw, err = io.ReadAll(body)
		text = normalizeSpace(string(raw))
	default:
		return "", apperrors.NewInvalidInputError(
			"That link doesn't point to a web page we can read. Please paste the recipe text instead.")
	}
	if err != nil {
		return "", unreachable(err)
	}

	text = limit(text, MaxTextLength)
	if text == "" {
		return "", apperrors.NewInvalidInputError(
			"We couldn't find a recipe on that page. Please paste the recipe text instead.")
	}

	f.logger.Info("Fetched recipe page", zap.String("host", u.Host), zap.Int("chars", len(text)))
	return text, nil
}

func blocked(cause error) error {
	return apperrors.NewInvalidInputError(
		"That link points to a private network address. Please paste the recipe text instead.").WithCause(cause)
}

func unreachable(cause error) error {
	return apperrors.NewInvalidInputError(
		"We couldn't load that recipe link. Please paste the recipe text instead.").WithCause(cause)
}

func limit(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
