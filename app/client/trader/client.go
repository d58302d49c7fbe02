package trader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"kaja/app/config"
	"net/http"
	"time"

	"github.com/samber/do"
)

// SwapResult describes a completed quote-token purchase as reported by the
// swap-execution service.
type SwapResult struct {
	TxID         string  `json:"tx_id"`
	AmountIn     float64 `json:"amount_in"`
	TokenIn      string  `json:"token_in"`
	AmountOut    float64 `json:"amount_out"`
	TokenSymbol  string  `json:"token_symbol"`
	TokenName    string  `json:"token_name"`
	TokenAddress string  `json:"token_address"`
	FeeSOL       float64 `json:"fee_sol"`
}

type swapRequest struct {
	PoolAddress string  `json:"pool_address"`
	AmountSOL   float64 `json:"amount_sol"`
}

type balanceResponse struct {
	Lamports uint64 `json:"lamports"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	return &Client{
		cfg: do.MustInvoke[*config.Config](di),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Swap buys the pool's quote token for the given amount of SOL. The call is
// not idempotent, callers must never retry it blindly.
func (c *Client) Swap(ctx context.Context, poolAddress string, amountSOL float64) (*SwapResult, error) {
	body, err := json.Marshal(swapRequest{
		PoolAddress: poolAddress,
		AmountSOL:   amountSOL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Trader.URL+"/v1/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap service returned status %d", resp.StatusCode)
	}

	var result SwapResult
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}

	return &result, nil
}

// Balance returns the agent wallet balance in lamports.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Trader.URL+"/v1/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("balance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("swap service returned status %d", resp.StatusCode)
	}

	var result balanceResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}

	return result.Lamports, nil
}
