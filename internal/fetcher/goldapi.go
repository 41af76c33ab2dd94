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

const goldAPIPricePath = "/price"

// GoldAPIOptions parameterise the gold-api.com fetcher.
type GoldAPIOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// GoldAPI fetches per-symbol spot prices from gold-api.com.
type GoldAPI struct {
	opts    GoldAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGoldAPI constructs a gold-api.com fetcher.
func NewGoldAPI(opts GoldAPIOptions, logger zerolog.Logger) *GoldAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.gold-api.com"
	}

	return &GoldAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "goldapi_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSpot retrieves the latest USD price for one symbol.
func (g *GoldAPI) FetchSpot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		return decimal.Decimal{}, errors.New("symbol required")
	}

	endpoint := fmt.Sprintf("%s%s/%s", g.baseURL, goldAPIPricePath, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrSymbolNotSupported, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("gold api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return decimal.Decimal{}, err
	}
	if body.Price == "" {
		return decimal.Decimal{}, fmt.Errorf("no price data for %s", symbol)
	}

	price, err := decimal.NewFromString(body.Price.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price: %w", err)
	}

	return price, nil
}

var _ SpotPriceFetcher = (*GoldAPI)(nil)
