package portfolio

import "time"

// Holding is one open position of the agent wallet.
type Holding struct {
	Amount       float64
	Symbol       string
	Name         string
	PoolAddress  string
	TokenAddress string
}

// Trade is a persisted purchase. It doubles as the artifact attached to an
// approved shilling outcome.
type Trade struct {
	ID                 string    `json:"id"`
	PoolAddress        string    `json:"pool_address"`
	TokenAddress       string    `json:"token_address"`
	TokenSymbol        string    `json:"token_symbol"`
	TokenName          string    `json:"token_name"`
	TxID               string    `json:"tx_id"`
	QuoteTokenQuantity float64   `json:"quote_token_quantity"`
	BaseTokenQuantity  float64   `json:"base_token_quantity"`
	Explanation        string    `json:"explanation"`
	CreatedAt          time.Time `json:"created_at"`
}

// PnlStats is an aggregate over closed trades.
type PnlStats struct {
	RealizedSOL     float64
	RealizedPercent float64
	TradeCount      int
}
