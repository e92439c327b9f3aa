package partners

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/feastline/relay-backend/pkg/enums"
	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
	"github.com/feastline/relay-backend/pkg/logger"
	"github.com/feastline/relay-backend/pkg/metrics"
)

const (
	tokenExpirySkew  = 30 * time.Second
	retryBaseDelay   = 500 * time.Millisecond
	retryJitter      = 250 * time.Millisecond
	responseReadCap  = 1 << 20
	authOperation    = "authenticate"
	defaultTokenLife = 30 * time.Minute
)

type coreParams struct {
	provider    enums.Provider
	environment enums.Environment
	apiKey      string
	apiSecret   string
	attempts    int
	callTimeout time.Duration
	metrics     *metrics.RelayMetrics
	logg        *logger.Logger
	baseURL     string
}

// core carries the HTTP plumbing shared by all provider clients: bearer token
// caching, bounded retry with jitter, per-call timeouts, and error mapping.
type core struct {
	provider    enums.Provider
	environment enums.Environment
	apiKey      string
	apiSecret   string
	baseURL     string
	authPath    string
	httpClient  *http.Client
	attempts    int
	callTimeout time.Duration
	metrics     *metrics.RelayMetrics
	logg        *logger.Logger

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

func newCore(params coreParams) *core {
	return &core{
		provider:    params.provider,
		environment: params.environment,
		apiKey:      params.apiKey,
		apiSecret:   params.apiSecret,
		baseURL:     params.baseURL,
		httpClient:  &http.Client{Timeout: params.callTimeout},
		attempts:    params.attempts,
		callTimeout: params.callTimeout,
		metrics:     params.metrics,
		logg:        params.logg,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type providerErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ensureToken returns a cached bearer token, authenticating only when the
// cache is empty or past expiry.
func (c *core) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(tokenExpirySkew).Before(c.tokenExpires) {
		return c.token, nil
	}

	var resp tokenResponse
	payload := map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"grant_type":    "client_credentials",
	}
	if err := c.call(ctx, authOperation, http.MethodPost, c.authPath, payload, &resp, "", nil); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeAuthFailure, "provider returned empty access token")
	}

	life := defaultTokenLife
	if resp.ExpiresIn > 0 {
		life = time.Duration(resp.ExpiresIn) * time.Second
	}
	c.token = resp.AccessToken
	c.tokenExpires = time.Now().Add(life)
	return c.token, nil
}

// invalidateToken drops the cached token after the provider rejects it.
func (c *core) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpires = time.Time{}
	c.mu.Unlock()
}

// authedCall resolves a bearer token and performs the request with it.
func (c *core) authedCall(ctx context.Context, op, method, path string, body, out any, statusCodes map[int]pkgerrors.Code) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	err = c.call(ctx, op, method, path, body, out, token, statusCodes)
	if pkgerrors.HasCode(err, pkgerrors.CodeAuthFailure) {
		c.invalidateToken()
	}
	return err
}

// call performs one logical provider operation: bounded retries with
// exponential backoff and jitter around individually timed-out HTTP attempts.
// Only transient failures (network errors, timeouts, 429, 5xx) are retried.
func (c *core) call(ctx context.Context, op, method, path string, body, out any, token string, statusCodes map[int]pkgerrors.Code) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode provider request")
		}
		payload = encoded
	}

	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithJitter(retryJitter, backoff)
	backoff = retry.WithMaxRetries(uint64(c.attempts-1), backoff)

	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.attempt(ctx, method, path, payload, out, token, statusCodes)
	})
	if c.metrics != nil {
		c.metrics.ObservePartnerCall(c.provider.String(), op, time.Since(start))
	}
	if err == nil {
		return nil
	}
	return c.finalError(ctx, op, err)
}

func (c *core) attempt(ctx context.Context, method, path string, payload []byte, out any, token string, statusCodes map[int]pkgerrors.Code) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadCap))
	if err != nil {
		return retry.RetryableError(fmt.Errorf("read provider response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "decode provider response")
		}
		return nil
	}

	message := providerMessage(raw)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(pkgerrors.New(pkgerrors.CodeRateLimited, message))
	case resp.StatusCode >= 500:
		return retry.RetryableError(pkgerrors.New(pkgerrors.CodeProviderUnavailable, message))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeAuthFailure, message)
	}

	if code, ok := statusCodes[resp.StatusCode]; ok {
		return pkgerrors.New(code, message)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"status_code": resp.StatusCode})
}

// finalError normalizes what surfaces after retries are exhausted. Typed
// domain errors pass through; raw transport failures collapse into
// ProviderTimeout/ProviderUnavailable.
func (c *core) finalError(ctx context.Context, op string, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if c.logg != nil {
		logCtx := c.logg.WithProvider(ctx, c.provider.String())
		c.logg.Error(logCtx, fmt.Sprintf("provider %s exhausted retries", op), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeProviderTimeout, err, fmt.Sprintf("%s timed out", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, fmt.Sprintf("%s failed", op))
}

func providerMessage(raw []byte) string {
	var body providerErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "provider request failed"
	}
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}
