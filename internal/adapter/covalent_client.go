package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/reputation-engine/internal/circuitbreaker"
	"github.com/reputation-engine/internal/config"
	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/types"
)

const covalentProvider = "covalent"

// CovalentClient fetches transaction history and balances from the Covalent (GoldRush) API
type CovalentClient struct {
	apiKey    string
	baseURL   string
	chain     string
	pageSize  int
	maxPages  int
	pageDelay time.Duration
	client    *http.Client
	breaker   *circuitbreaker.CircuitBreaker
	gate      RequestGate
}

// covalentEnvelope is the common response wrapper
type covalentEnvelope[T any] struct {
	Data struct {
		Items []T `json:"items"`
		Links struct {
			Next *string `json:"next"`
		} `json:"links"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// NewCovalentClient creates a client for the configured chain
func NewCovalentClient(cfg config.CovalentConfig, ledger config.LedgerConfig) *CovalentClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxPages := ledger.MaxPages
	if maxPages <= 0 {
		maxPages = 500
	}
	pageSize := ledger.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &CovalentClient{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		chain:     cfg.ChainName,
		pageSize:  pageSize,
		maxPages:  maxPages,
		pageDelay: ledger.PageDelay,
		client:    &http.Client{Timeout: timeout},
		breaker:   circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig(covalentProvider)),
	}
}

// WithGate makes every request wait on gate first
func (c *CovalentClient) WithGate(gate RequestGate) *CovalentClient {
	c.gate = gate
	return c
}

// Breaker exposes the client's circuit breaker for health reporting
func (c *CovalentClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *CovalentClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// FetchTransactions follows the provider's next link until it runs out or the
// page ceiling is hit. Pages are fetched strictly in order with a fixed delay
// between them. When a page fails, everything gathered so far is returned
// together with a *PartialResultError.
func (c *CovalentClient) FetchTransactions(ctx context.Context, address string) ([]types.RawTransaction, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderNotConfiguredError(covalentProvider)
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider": covalentProvider,
		"address":  address,
	})

	limit := rate.Inf
	if c.pageDelay > 0 {
		limit = rate.Every(c.pageDelay)
	}
	pacer := rate.NewLimiter(limit, 1)

	next := fmt.Sprintf("%s/%s/address/%s/transactions_v3/?page-size=%d",
		c.baseURL, url.PathEscape(c.chain), url.PathEscape(address), c.pageSize)

	var items []types.RawTransaction
	pages := 0
	for next != "" {
		if pages >= c.maxPages {
			logger.WithField("maxPages", c.maxPages).Warn("Transaction history truncated at page ceiling")
			break
		}
		if err := pacer.Wait(ctx); err != nil {
			return items, &PartialResultError{Provider: covalentProvider, Pages: pages, Items: len(items), Cause: err}
		}

		var page covalentEnvelope[types.RawTransaction]
		if err := getJSON(ctx, c.client, c.breaker, c.gate, next, c.headers(), &page); err != nil {
			logger.WithField("page", pages).WithError(err).Warn("Transaction page fetch failed, keeping partial history")
			return items, &PartialResultError{Provider: covalentProvider, Pages: pages, Items: len(items), Cause: err}
		}
		if page.Error {
			err := fmt.Errorf("provider error: %s", page.ErrorMessage)
			logger.WithField("page", pages).WithError(err).Warn("Transaction page rejected, keeping partial history")
			return items, &PartialResultError{Provider: covalentProvider, Pages: pages, Items: len(items), Cause: err}
		}

		items = append(items, page.Data.Items...)
		pages++

		next = ""
		if page.Data.Links.Next != nil {
			next = c.resolve(*page.Data.Links.Next)
		}
	}

	logger.WithFields(map[string]interface{}{
		"pages": pages,
		"items": len(items),
	}).Debug("Fetched transaction history")

	return items, nil
}

// FetchBalances returns a single balances snapshot
func (c *CovalentClient) FetchBalances(ctx context.Context, address string) ([]types.RawBalance, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewProviderNotConfiguredError(covalentProvider)
	}

	endpoint := fmt.Sprintf("%s/%s/address/%s/balances_v2/?nft=false&no-spam=true",
		c.baseURL, url.PathEscape(c.chain), url.PathEscape(address))

	var resp covalentEnvelope[types.RawBalance]
	if err := getJSON(ctx, c.client, c.breaker, c.gate, endpoint, c.headers(), &resp); err != nil {
		return nil, apperrors.NewProviderError(covalentProvider, err)
	}
	if resp.Error {
		return nil, apperrors.NewProviderError(covalentProvider, fmt.Errorf("provider error: %s", resp.ErrorMessage))
	}
	return resp.Data.Items, nil
}

// resolve turns a relative next link into an absolute URL on the configured host
func (c *CovalentClient) resolve(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
