package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"kaja/app/config"
	"net/http"
	"time"

	"github.com/samber/do"
)

// ErrUnsupportedToken means the address is not a Solana token known to
// Dex Screener.
var ErrUnsupportedToken = errors.New("token is not supported by Dex Screener")

// Snapshot is the analytics data for one token pair.
type Snapshot struct {
	PairAddress   string
	LiquidityUSD  float64
	Volume24h     float64
	MarketCap     float64
	FDV           float64
	PairCreatedAt time.Time
	Buys24h       int64
	Sells24h      int64
}

type pairResponse struct {
	PairAddress string `json:"pairAddress"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	MarketCap     float64 `json:"marketCap"`
	FDV           float64 `json:"fdv"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
	Txns          struct {
		H24 struct {
			Buys  int64 `json:"buys"`
			Sells int64 `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	return &Client{
		cfg: do.MustInvoke[*config.Config](di),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// TokenData fetches the analytics snapshot of a Solana token.
func (c *Client) TokenData(ctx context.Context, tokenAddress string) (*Snapshot, error) {
	url := fmt.Sprintf("%s/tokens/v1/solana/%s", c.cfg.Markets.DexscreenerURL, tokenAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnsupportedToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener returned status %d", resp.StatusCode)
	}

	var pairs []pairResponse
	if err = json.NewDecoder(resp.Body).Decode(&pairs); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener response: %w", err)
	}

	if len(pairs) == 0 {
		return nil, ErrUnsupportedToken
	}

	pair := pairs[0]

	return &Snapshot{
		PairAddress:   pair.PairAddress,
		LiquidityUSD:  pair.Liquidity.USD,
		Volume24h:     pair.Volume.H24,
		MarketCap:     pair.MarketCap,
		FDV:           pair.FDV,
		PairCreatedAt: time.UnixMilli(pair.PairCreatedAt),
		Buys24h:       pair.Txns.H24.Buys,
		Sells24h:      pair.Txns.H24.Sells,
	}, nil
}
