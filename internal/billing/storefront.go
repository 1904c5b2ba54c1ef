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

	"reel/internal/config"
	"reel/internal/logging"
)

// updatePollTimeout bounds one long-poll cycle against /updates; the
// server is expected to answer 204 well before this.
const updatePollTimeout = 90 * time.Second

// Storefront talks to the platform billing service over HTTP.
type Storefront struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	updateClient *http.Client
	logger       *slog.Logger
}

// StorefrontOption customizes the storefront client.
type StorefrontOption func(*Storefront)

// WithHTTPClient overrides the default HTTP client for request/response
// calls. The update stream keeps its own long-poll client.
func WithHTTPClient(client *http.Client) StorefrontOption {
	return func(s *Storefront) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewStorefront constructs a billing provider from configuration.
func NewStorefront(cfg *config.Config, logger *slog.Logger, opts ...StorefrontOption) *Storefront {
	s := &Storefront{
		baseURL:      strings.TrimRight(cfg.Billing.BaseURL, "/"),
		apiKey:       cfg.Billing.APIKey,
		httpClient:   &http.Client{Timeout: cfg.Billing.Timeout()},
		updateClient: &http.Client{Timeout: updatePollTimeout},
		logger:       logging.NewComponentLogger(logger, "storefront"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Products implements Provider.
func (s *Storefront) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.do(ctx, s.httpClient, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	return products, nil
}

type purchaseBody struct {
	ProductID string `json:"productId"`
}

// Purchase implements Provider.
func (s *Storefront) Purchase(ctx context.Context, productID string) (PurchaseResult, error) {
	var result PurchaseResult
	if err := s.do(ctx, s.httpClient, http.MethodPost, "/purchase", purchaseBody{ProductID: productID}, &result); err != nil {
		return PurchaseResult{}, fmt.Errorf("purchase %s: %w", productID, err)
	}
	return result, nil
}

// CurrentEntitlements implements Provider.
func (s *Storefront) CurrentEntitlements(ctx context.Context) ([]Transaction, error) {
	var entitlements []Transaction
	if err := s.do(ctx, s.httpClient, http.MethodGet, "/entitlements", nil, &entitlements); err != nil {
		return nil, fmt.Errorf("fetch entitlements: %w", err)
	}
	return entitlements, nil
}

// TransactionUpdates implements Provider. It long-polls /updates until
// the context is cancelled; transport hiccups back off briefly and
// retry rather than tearing down the stream.
func (s *Storefront) TransactionUpdates(ctx context.Context) (<-chan Transaction, error) {
	updates := make(chan Transaction)
	go func() {
		defer close(updates)
		for {
			if ctx.Err() != nil {
				return
			}
			txn, ok, err := s.pollUpdate(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("update poll failed", logging.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
				continue
			}
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case updates <- txn:
			}
		}
	}()
	return updates, nil
}

func (s *Storefront) pollUpdate(ctx context.Context) (Transaction, bool, error) {
	endpoint, err := url.JoinPath(s.baseURL, "/updates")
	if err != nil {
		return Transaction{}, false, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.updateClient.Do(req)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Transaction{}, false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Transaction{}, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var txn Transaction
	if err := json.Unmarshal(body, &txn); err != nil {
		return Transaction{}, false, fmt.Errorf("decode update: %w", err)
	}
	return txn, true, nil
}

func (s *Storefront) do(ctx context.Context, client *http.Client, method, path string, payload, out any) error {
	endpoint, err := url.JoinPath(s.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *Storefront) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

const userAgent = "Reel-Go/0.1.0"
