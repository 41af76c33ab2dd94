package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ExchangeRateOptions parameterise the exchangerate-api.com fetcher.
type ExchangeRateOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ExchangeRate fetches the full USD conversion table from exchangerate-api.com.
type ExchangeRate struct {
	opts    ExchangeRateOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewExchangeRate constructs an exchangerate-api.com fetcher.
func NewExchangeRate(opts ExchangeRateOptions, logger zerolog.Logger) *ExchangeRate {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://v6.exchangerate-api.com/v6"
	}

	return &ExchangeRate{
		opts:    opts,
		logger:  logger.With().Str("component", "exchangerate_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchRates retrieves the latest conversion rates vs USD.
func (e *ExchangeRate) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if e.opts.APIKey == "" {
		return nil, errors.New("exchangerate api key not configured")
	}

	endpoint := fmt.Sprintf("%s/%s/latest/USD", e.baseURL, e.opts.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchangerate api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		ConversionRates map[string]json.Number `json:"conversion_rates"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	if len(body.ConversionRates) == 0 {
		return nil, errors.New("exchangerate api returned no conversion rates")
	}

	rates := make(map[string]decimal.Decimal, len(body.ConversionRates))
	for currency, raw := range body.ConversionRates {
		rate, convErr := decimal.NewFromString(raw.String())
		if convErr != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", currency, convErr)
		}
		rates[currency] = rate
	}

	return rates, nil
}

var _ FXRateFetcher = (*ExchangeRate)(nil)
