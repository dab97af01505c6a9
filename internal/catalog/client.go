// Package catalog is the client for the external board game catalog XML API.
package catalog

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"board-game-suggestor/internal/config"
	"board-game-suggestor/internal/metrics"
)

const (
	endpointCollection = "collection"
	endpointThing      = "thing"

	breakerName = "catalog-api"
)

// pendingMarker appears in the body of a collection response that has been
// queued upstream but is not ready yet.
var pendingMarker = []byte("Your request for this collection has been accepted")

// ErrNoIDs is returned by FetchItems for an empty id list.
var ErrNoIDs = errors.New("no item ids given")

// errAbandoned marks failures caused by the caller's context so the circuit
// breaker does not count them against the upstream.
var errAbandoned = errors.New("catalog request abandoned")

// Client fetches collections and item details. Requests from all callers
// share one rate limiter and one circuit breaker.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a catalog client from configuration.
func NewClient(cfg *config.CatalogConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/xml").
		SetHeader("User-Agent", "board-game-suggestor")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		breaker: newBreaker(cfg),
	}
}

func newBreaker(cfg *config.CatalogConfig) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests || ratio <= 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Catalog circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

// countsAsSuccess decides which errors the breaker ignores. Only transport
// failures, 429 and 5xx indicate an unhealthy upstream.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrPending) || errors.Is(err, errAbandoned) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerState returns the circuit breaker state name.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// FetchCollection fetches a user's collection with rating statistics. It
// returns ErrPending while the upstream is still preparing the collection.
func (c *Client) FetchCollection(ctx context.Context, userName string) (*CollectionPayload, error) {
	body, err := c.get(ctx, endpointCollection, map[string]string{
		"username": userName,
		"stats":    "1",
	})
	if err != nil {
		return nil, err
	}

	var payload CollectionPayload
	if err := xml.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &payload, nil
}

// FetchItems fetches detail records for ids in one request. Callers batch
// ids to the upstream maximum; the client does not split them.
func (c *Client) FetchItems(ctx context.Context, ids []int64) (*ThingPayload, error) {
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	body, err := c.get(ctx, endpointThing, map[string]string{
		"id":    strings.Join(parts, ","),
		"stats": "1",
	})
	if err != nil {
		return nil, err
	}

	var payload ThingPayload
	if err := xml.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return &payload, nil
}

// get performs one paced, breaker-guarded GET and classifies the response.
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	start := time.Now()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", errAbandoned, err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errAbandoned, ctx.Err())
			}
			return nil, fmt.Errorf("catalog %s request failed: %w", endpoint, err)
		}

		if !resp.IsSuccess() {
			return nil, &StatusError{StatusCode: resp.StatusCode(), Endpoint: endpoint}
		}
		return classifyBody(resp.StatusCode(), resp.Body())
	})

	result := outcome(err)
	metrics.RecordCatalogRequest(endpoint, result, time.Since(start))
	switch {
	case err == nil:
		return body, nil
	case result == "rejected" || result == "transport":
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return nil, err
	}
}

// classifyBody separates pending replies and error documents from data.
func classifyBody(status int, body []byte) ([]byte, error) {
	if status == http.StatusAccepted || bytes.Contains(body, pendingMarker) {
		return nil, ErrPending
	}

	if bytes.Contains(body, []byte("<errors")) {
		var doc errorsDocument
		if err := xml.Unmarshal(body, &doc); err == nil && len(doc.Errors) > 0 {
			return nil, &APIError{Message: strings.TrimSpace(doc.Errors[0].Message)}
		}
	}

	return body, nil
}

func outcome(err error) string {
	var se *StatusError
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPending):
		return "pending"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &se):
		return metrics.HTTPOutcome(se.StatusCode)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, errAbandoned):
		return "canceled"
	default:
		return "transport"
	}
}
