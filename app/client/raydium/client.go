package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"kaja/app/config"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/do"
)

const wsolAddress = "So11111111111111111111111111111111111111112"

// Pool is the result of a pool or token address lookup. Exists=false is a
// regular outcome, not an error.
type Pool struct {
	PoolAddress string
	Exists      bool
}

type poolInfoResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Data []struct {
			ID    string `json:"id"`
			MintA struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
			} `json:"mintA"`
			MintB struct {
				Address string `json:"address"`
				Symbol  string `json:"symbol"`
			} `json:"mintB"`
		} `json:"data"`
	} `json:"data"`
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

// Lookup resolves a pool or token address to its Raydium pool. An address
// with no pool behind it yields Exists=false.
func (c *Client) Lookup(ctx context.Context, poolOrTokenAddress string) (*Pool, error) {
	reqURL := fmt.Sprintf("%s/pools/info/mint?mint1=%s&mint2=%s&poolType=Standard&poolSortField=default&sortType=desc&pageSize=1&page=1",
		c.cfg.Markets.RaydiumURL, url.QueryEscape(poolOrTokenAddress), wsolAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raydium request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raydium returned status %d", resp.StatusCode)
	}

	var info poolInfoResponse
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode raydium response: %w", err)
	}

	if !info.Success || len(info.Data.Data) == 0 {
		return &Pool{Exists: false}, nil
	}

	return &Pool{
		PoolAddress: info.Data.Data[0].ID,
		Exists:      true,
	}, nil
}
