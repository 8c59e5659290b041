package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GatewayProvider collects through a mobile money aggregator. The
// aggregator pushes the USSD prompt on collection start; the result is
// polled until the collection settles.
type GatewayProvider struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	client       *http.Client
	logger       observability.Logger
}

type collectionRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	PhoneNumber string `json:"phone_number"`
	Operator    string `json:"operator"`
	Reference   string `json:"external_reference"`
}

type collectionResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"` // pending, successful, failed
	Message string `json:"message,omitempty"`
}

func NewGatewayProvider(baseURL, apiKey string, logger observability.Logger) *GatewayProvider {
	return &GatewayProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: 2 * time.Second,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// WithPollInterval is used by tests to avoid waiting between status checks.
func (g *GatewayProvider) WithPollInterval(d time.Duration) *GatewayProvider {
	g.pollInterval = d
	return g
}

func (g *GatewayProvider) Name() string { return "gateway" }

func (g *GatewayProvider) SendConfirmation(ctx context.Context, req Request) (string, error) {
	body := collectionRequest{
		Amount:      fmt.Sprintf("%.0f", req.Amount),
		Currency:    req.Currency,
		PhoneNumber: countryCode + req.Phone,
		Operator:    strings.ToUpper(req.Operator),
		Reference:   req.Reference,
	}
	var resp collectionResponse
	if err := g.do(ctx, http.MethodPost, "/collections", body, &resp); err != nil {
		return "", errors.Wrap(err, "start collection")
	}
	if resp.Status == "failed" {
		return "", errors.Wrap(ErrPaymentDeclined, resp.Message)
	}
	g.logger.WithFields(map[string]interface{}{
		"reference":      req.Reference,
		"transaction_id": resp.ID,
	}).Info("collection started")
	return resp.ID, nil
}

func (g *GatewayProvider) AwaitPayment(ctx context.Context, req Request) (Result, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		var resp collectionResponse
		if err := g.do(ctx, http.MethodGet, "/collections/"+req.TransactionID, nil, &resp); err != nil {
			return Result{}, errors.Wrap(err, "poll collection")
		}
		switch resp.Status {
		case "successful":
			return Result{TransactionID: resp.ID, PaidAt: time.Now().UTC()}, nil
		case "failed":
			return Result{}, errors.Wrap(ErrPaymentDeclined, resp.Message)
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *GatewayProvider) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e collectionResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return errors.Newf("gateway http %d: %s", resp.StatusCode, e.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
