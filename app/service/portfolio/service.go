package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"kaja/app/config"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Service reads and writes the agent's trade records. Schema management is
// external, the queries here assume the trades and rejections tables exist.
type Service struct {
	db *sql.DB
}

func New(di *do.Injector) (*Service, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	return &Service{db: db}, nil
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Holdings lists the agent's open positions.
func (s *Service) Holdings(ctx context.Context) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT quote_token_quantity, token_symbol, token_name, pool_address, token_address
		FROM trades
		WHERE state = 'open'
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err = rows.Scan(&h.Amount, &h.Symbol, &h.Name, &h.PoolAddress, &h.TokenAddress); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}

	return holdings, nil
}

// HasToken reports whether the pool is already present among open positions.
func (s *Service) HasToken(ctx context.Context, poolAddress string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE pool_address = ? AND state = 'open'`,
		poolAddress).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check token presence: %w", err)
	}

	return count > 0, nil
}

// TradedWithinLastHour reports whether any purchase happened in the last hour.
func (s *Service) TradedWithinLastHour(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE created_at > NOW() - INTERVAL 1 HOUR`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check trade recency: %w", err)
	}

	return count > 0, nil
}

// BuyExplanation returns the recorded reason for buying the pool's token.
// The second return value reports whether the pool was found.
func (s *Service) BuyExplanation(ctx context.Context, poolAddress string) (string, bool, error) {
	var explanation string
	err := s.db.QueryRowContext(ctx,
		`SELECT explanation FROM trades WHERE pool_address = ? ORDER BY created_at DESC LIMIT 1`,
		poolAddress).Scan(&explanation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query buy explanation: %w", err)
	}

	return explanation, true, nil
}

// PnlStatistics aggregates realized profit and loss over closed trades.
func (s *Service) PnlStatistics(ctx context.Context, action string) (*PnlStats, error) {
	var stats PnlStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pnl_sol), 0), COALESCE(AVG(pnl_percent), 0), COUNT(*)
		FROM trades
		WHERE state = 'closed'`).Scan(&stats.RealizedSOL, &stats.RealizedPercent, &stats.TradeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query pnl statistics (%s): %w", action, err)
	}

	return &stats, nil
}

// TradePnl returns realized SOL profit and its percentage for one trade.
func (s *Service) TradePnl(ctx context.Context, tradeID string) (float64, float64, error) {
	var pnlSOL, pnlPercent float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(pnl_sol, 0), COALESCE(pnl_percent, 0) FROM trades WHERE id = ?`,
		tradeID).Scan(&pnlSOL, &pnlPercent)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query trade pnl: %w", err)
	}

	return pnlSOL, pnlPercent, nil
}

// RecordTrade persists an approved purchase as an open position.
func (s *Service) RecordTrade(ctx context.Context, trade *Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, pool_address, token_address, token_symbol, token_name, tx_id,
			 quote_token_quantity, base_token_quantity, explanation, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'open', ?)`,
		trade.ID, trade.PoolAddress, trade.TokenAddress, trade.TokenSymbol, trade.TokenName,
		trade.TxID, trade.QuoteTokenQuantity, trade.BaseTokenQuantity, trade.Explanation,
		trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	return nil
}

// RecordRejection persists a rejected shilling with its explanation.
func (s *Service) RecordRejection(ctx context.Context, explanation string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rejections (explanation, created_at) VALUES (?, NOW())`,
		explanation)
	if err != nil {
		return fmt.Errorf("failed to record rejection: %w", err)
	}

	return nil
}

func (s *Service) Shutdown() error {
	return s.db.Close()
}
