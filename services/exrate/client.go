package exrate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
)

const jmdKey = "USD:JMD"

// latestRates is the body of `GET <url>`, eg. https://api.exchangerate-api.com/v4/latest/USD
type latestRates struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Client fetches the JMD per USD rate from the exchange rate service and caches it.
type Client struct {
	url    string
	ttl    time.Duration
	http   *http.Client
	cache  Cache
	logger core.Logger
}

var _ payment.RateProvider = (*Client)(nil) // interface compliance check

func NewClient(conf *core.Config, cache Cache, logger core.Logger) *Client {
	return &Client{
		url:    conf.ExchangeRate.URL,
		ttl:    conf.ExchangeRate.TTL,
		http:   &http.Client{Timeout: conf.ExchangeRate.Timeout},
		cache:  cache,
		logger: logger,
	}
}

func (c *Client) JMDPerUSD(ctx context.Context) (float64, error) {
	if rate, err := c.cache.Get(ctx, jmdKey); err == nil {
		return rate, nil
	} else if err != ErrCacheMiss {
		c.logger.Warn("reading rate cache", err)
	}

	rate, err := c.fetch(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, jmdKey, rate, c.ttl); err != nil {
		c.logger.Warn("writing rate cache", err)
	}
	return rate, nil
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetching rates")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("fetching rates: unexpected status %d", resp.StatusCode)
	}
	var body latestRates
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, errors.Wrap(err, "decoding rates")
	}
	rate, ok := body.Rates["JMD"]
	if !ok || rate <= 0 {
		return 0, errors.New("no JMD rate in response")
	}
	return rate, nil
}
