package toncenter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

const (
	runGetMethodPath = "/runGetMethod"
	apiKeyHeader     = "X-API-Key"

	// Límites documentados del gateway público: 1 req/s sin API key, 10 req/s con key.
	publicRatePerSec = 1
	keyedRatePerSec  = 10

	defaultTimeout = 10 * time.Second
)

// Client es el HTTP client del gateway de get-methods con rate limiting.
// No reintenta: los errores se clasifican (domain.ErrRateLimited,
// domain.ErrTransient, ...) y la política de retry vive en el reconciler.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
	network domain.NetworkConfig
}

// NewClient crea un Client para la red dada. Un timeout <= 0 usa el default.
// El limiter se elige según haya API key o no.
func NewClient(network domain.NetworkConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limiter := rate.NewLimiter(publicRatePerSec, 1)
	if network.HasAPIKey() {
		limiter = rate.NewLimiter(keyedRatePerSec, keyedRatePerSec)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    strings.TrimRight(network.APIBase, "/"),
		apiKey:  network.APIKey,
		limiter: limiter,
		network: network,
	}
}

// WithLimiter reemplaza el limiter (tests y despliegues propios del gateway).
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// runGetMethod ejecuta un get-method y devuelve un reader sobre su stack.
func (c *Client) runGetMethod(ctx context.Context, address, method string, args ...stackEntry) (*stackReader, error) {
	if args == nil {
		args = []stackEntry{}
	}
	body, err := json.Marshal(runGetMethodRequest{Address: address, Method: method, Stack: args})
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+runGetMethodPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return nil, fmt.Errorf("%s: %w", method, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %v", method, domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Debug("rate limited by gateway", "method", method, "address", address)
		return nil, fmt.Errorf("%s: %w", method, domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: %w: server error %d", method, domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: client error %d: %s", method, resp.StatusCode, string(msg))
	}

	var out runGetMethodResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: decode response: %v", method, domain.ErrMalformedReply, err)
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("%s on %s: %w: exit code %d", method, address, domain.ErrNotAvailable, out.ExitCode)
	}
	return newStackReader(method, out.Stack), nil
}
