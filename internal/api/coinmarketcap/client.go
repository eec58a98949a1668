package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	httpClient "github.com/oblik/seda-project/internal/platform/http"
	"github.com/oblik/seda-project/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "https://pro-api.coinmarketcap.com"
	DefaultKeyHeader = "X-CMC_PRO_API_KEY"

	quotesLatestPath = "/v1/cryptocurrency/quotes/latest"
)

// Client is the CoinMarketCap API client
type Client struct {
	apiKey     string
	keyHeader  string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new CoinMarketCap client
type ClientOptions struct {
	APIKey          string
	KeyHeader       string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	RetryInterval   time.Duration
	MaxRetryTimeout time.Duration
}

// NewClient creates a new CoinMarketCap API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		RetryInterval:   options.RetryInterval,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	// Apply defaults if not set
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.KeyHeader == "" {
		options.KeyHeader = DefaultKeyHeader
	}

	return &Client{
		apiKey:     options.APIKey,
		keyHeader:  options.KeyHeader,
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "coinmarketcap_client").Logger(),
	}
}

// FetchSnapshot fetches the latest quote of symbol priced in convert.
// A non-success response yields *models.FetchRejectedError, a body that does not
// match the quote schema yields *models.DecodeError.
func (c *Client) FetchSnapshot(ctx context.Context, symbol, convert string) (*models.MarketSnapshot, error) {
	if symbol == "" || convert == "" {
		return nil, fmt.Errorf("symbol and convert must be set (symbol=%q convert=%q)", symbol, convert)
	}

	endpoint := c.quotesURL(symbol, convert)
	c.logger.Info().Str("symbol", symbol).Str("convert", convert).Msgf("Fetching %s/%s data from CoinMarketCap", symbol, convert)
	c.logger.Debug().Str("url", endpoint).Msg("Requesting latest quotes")

	// The key goes in a header so it never ends up in URLs, proxies or logs
	res, err := c.httpClient.Fetch(ctx, endpoint, map[string]string{
		c.keyHeader: c.apiKey,
		"Accept":    "application/json",
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP Response was rejected: transport failure")
		return nil, &models.FetchRejectedError{Cause: err}
	}

	if !res.IsOK() {
		body := string(res.Body)
		c.logger.Error().Int("status", res.StatusCode).Str("response", body).
			Msgf("HTTP Response was rejected: %d - %s", res.StatusCode, body)
		return nil, &models.FetchRejectedError{Status: res.StatusCode, Body: body}
	}

	snapshot, err := decodeSnapshot(res.Body, symbol, convert)
	if err != nil {
		c.logger.Error().Err(err).Str("response", string(res.Body)).Msg("Error parsing quote response")
		return nil, &models.DecodeError{Cause: err}
	}

	c.logger.Info().Float64("price", snapshot.Price).Msgf("Fetched %s/%s price: %v", symbol, convert, snapshot.Price)
	c.logger.Info().Float64("percent_change_24h", snapshot.PercentChange24h).Msgf("24h percent change: %v%%", snapshot.PercentChange24h)
	c.logger.Info().Float64("volume_24h", snapshot.Volume24h).Msgf("24h volume: %v", snapshot.Volume24h)

	return snapshot, nil
}

func (c *Client) quotesURL(symbol, convert string) string {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("convert", convert)
	return c.baseURL + quotesLatestPath + "?" + q.Encode()
}

// decodeSnapshot walks data -> symbol -> quote -> convert and requires every field
func decodeSnapshot(body []byte, symbol, convert string) (*models.MarketSnapshot, error) {
	var data models.QuotesLatestResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	asset, ok := data.Data[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %s", symbol)
	}

	quote, ok := asset.Quote[convert]
	if !ok {
		return nil, fmt.Errorf("no %s quote for symbol %s", convert, symbol)
	}

	var missing []string
	if quote.Price == nil {
		missing = append(missing, "price")
	}
	if quote.PercentChange24h == nil {
		missing = append(missing, "percent_change_24h")
	}
	if quote.Volume24h == nil {
		missing = append(missing, "volume_24h")
	}
	if len(missing) > 0 {
		return nil, errors.New("missing field(s): " + strings.Join(missing, ", "))
	}

	return models.NewMarketSnapshot(*quote.Price, *quote.PercentChange24h, *quote.Volume24h)
}
