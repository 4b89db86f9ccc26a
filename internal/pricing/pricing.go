package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source values token mints in USD. Mints without a known price are absent from the result.
type Source interface {
	Prices(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]decimal.Decimal, error)
}

// Pyth reads the latest prices from a Hermes endpoint.
type Pyth struct {
	logger *zap.Logger
	client *http.Client
	url    string
	// feeds maps mint to price feed id
	feeds map[solana.PublicKey]string
}

func NewPyth(logger *zap.Logger, endpoint string, feeds map[string]string) (*Pyth, error) {
	parsed := make(map[solana.PublicKey]string, len(feeds))
	for mint, feed := range feeds {
		key, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("invalid mint %q in price feeds: %w", mint, err)
		}
		parsed[key] = strings.TrimPrefix(strings.ToLower(feed), "0x")
	}
	return &Pyth{
		logger: logger,
		client: &http.Client{},
		url:    endpoint,
		feeds:  parsed,
	}, nil
}

type hermesResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price string `json:"price"`
			Expo  int32  `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

func (p *Pyth) Prices(ctx context.Context, mints []solana.PublicKey) (map[solana.PublicKey]decimal.Decimal, error) {
	prices := make(map[solana.PublicKey]decimal.Decimal)

	byFeed := make(map[string][]solana.PublicKey)
	params := url.Values{}
	for _, mint := range mints {
		feed, ok := p.feeds[mint]
		if !ok {
			continue
		}
		if _, seen := byFeed[feed]; !seen {
			params.Add("ids[]", feed)
		}
		byFeed[feed] = append(byFeed[feed], mint)
	}
	if len(byFeed) == 0 {
		return prices, nil
	}
	params.Set("parsed", "true")

	reqURL, err := url.Parse(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price URL: %w", err)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code from price service: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read price response: %w", err)
	}
	var parsed hermesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	for _, item := range parsed.Parsed {
		feedMints, ok := byFeed[strings.TrimPrefix(strings.ToLower(item.ID), "0x")]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(item.Price.Price)
		if err != nil {
			p.logger.Warn("could not parse price", zap.String("feed", item.ID), zap.Error(err))
			continue
		}
		price = price.Shift(item.Price.Expo)
		for _, mint := range feedMints {
			prices[mint] = price
		}
	}
	return prices, nil
}
