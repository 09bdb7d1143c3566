package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixhealth/helix-portal/internal/shared"
)

const (
	paymentTimeout   = 5 * time.Second
	maxResponseBytes = 1 << 20
	paymentPath      = "/payments"
)

// Gateway builds and issues requests to third-party payment
// processors. Only hosts on the configured allowlist are ever dialed;
// the caller-supplied brand string is never concatenated into a URL
// before it has matched the allowlist exactly.
type Gateway struct {
	// Client may be replaced in tests. The default follows zero
	// redirects and times out after paymentTimeout.
	Client *http.Client

	allowlist map[string]struct{}
	logger    *slog.Logger
}

// NewGateway constructs a Gateway from the configured processor hosts.
func NewGateway(brands []string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	allowlist := make(map[string]struct{}, len(brands))
	for _, b := range brands {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			allowlist[b] = struct{}{}
		}
	}
	return &Gateway{
		Client: &http.Client{
			Timeout: paymentTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		allowlist: allowlist,
		logger:    logger,
	}
}

// BuildRequest validates the brand and constructs the settlement
// request: hardcoded https scheme, allowlisted host, fixed path.
func (g *Gateway) BuildRequest(ctx context.Context, brand string, card CardDetails) (*http.Request, error) {
	host := strings.ToLower(strings.TrimSpace(brand))
	if _, ok := g.allowlist[host]; !ok {
		return nil, fmt.Errorf("billing: brand not allowlisted: %w", shared.ErrPayment)
	}

	body, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("billing: encode card payload: %w", shared.ErrPayment)
	}

	target := url.URL{Scheme: "https", Host: host, Path: paymentPath}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("billing: build request: %w", shared.ErrPayment)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Charge issues the settlement call. Success is strictly a 2xx status;
// everything else, including transport errors and followed-nowhere
// redirects, is ErrPayment. The response body is capped and discarded,
// never surfaced.
func (g *Gateway) Charge(ctx context.Context, brand string, card CardDetails) error {
	req, err := g.BuildRequest(ctx, brand, card)
	if err != nil {
		return err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		g.logger.Warn("payment call failed", slog.String("brand", brand), slog.Any("error", err))
		return fmt.Errorf("billing: settlement call: %w", shared.ErrPayment)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("payment rejected", slog.String("brand", brand), slog.Int("status", resp.StatusCode))
		return fmt.Errorf("billing: settlement status %d: %w", resp.StatusCode, shared.ErrPayment)
	}
	return nil
}
