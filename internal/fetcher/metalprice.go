package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const metalPriceLatestPath = "/latest"

// MetalPriceOptions parameterise the metalpriceapi.com fetcher.
type MetalPriceOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MetalPrice fetches spot prices from metalpriceapi.com. The free tier is
// rate limited, so only symbols gold-api.com cannot serve are routed here.
type MetalPrice struct {
	opts    MetalPriceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMetalPrice constructs a metalpriceapi.com fetcher.
func NewMetalPrice(opts MetalPriceOptions, logger zerolog.Logger) *MetalPrice {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.metalpriceapi.com/v1"
	}

	return &MetalPrice{
		opts:    opts,
		logger:  logger.With().Str("component", "metalprice_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSpot retrieves the latest USD price for one symbol.
func (m *MetalPrice) FetchSpot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if m.opts.APIKey == "" {
		return decimal.Decimal{}, errors.New("metalpriceapi api key not configured")
	}
	if symbol == "" {
		return decimal.Decimal{}, errors.New("symbol required")
	}

	query := url.Values{}
	query.Set("api_key", m.opts.APIKey)
	query.Set("base", "USD")
	query.Set("currencies", symbol)

	endpoint := m.baseURL + metalPriceLatestPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("metalprice api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		Success bool                   `json:"success"`
		Rates   map[string]json.Number `json:"rates"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return decimal.Decimal{}, err
	}
	if !body.Success {
		return decimal.Decimal{}, fmt.Errorf("metalprice api returned success=false for %s", symbol)
	}

	// The API keys rates as USD<symbol>, e.g. USDXPT.
	raw, ok := body.Rates["USD"+symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrSymbolNotSupported, symbol)
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price: %w", err)
	}

	return price, nil
}

var _ SpotPriceFetcher = (*MetalPrice)(nil)
