package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kaja/app/client/dexscreener"
	"kaja/app/client/raydium"
	"kaja/app/client/trader"
	"kaja/app/client/twitter"
	"kaja/app/config"
	"kaja/app/service/catalog"
	"kaja/app/service/portfolio"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const reserveLamports = 10_000_000 // 0.01 SOL kept aside for fees

// CallContext carries the caller's identity and permissions. It is supplied
// by the host, never taken from model-controlled arguments.
type CallContext struct {
	WalletAddress  string
	TradingAllowed bool
}

// Outcome is the structured result of one tool execution. Text is what goes
// back to the model as the tool result.
type Outcome struct {
	Text        string
	PoolAddress string
	PoolExists  bool
	Trade       *portfolio.Trade
}

type Analytics interface {
	TokenData(ctx context.Context, tokenAddress string) (*dexscreener.Snapshot, error)
}

type Pools interface {
	Lookup(ctx context.Context, poolOrTokenAddress string) (*raydium.Pool, error)
}

type Trader interface {
	Swap(ctx context.Context, poolAddress string, amountSOL float64) (*trader.SwapResult, error)
	Balance(ctx context.Context) (uint64, error)
}

type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

type Portfolio interface {
	Holdings(ctx context.Context) ([]portfolio.Holding, error)
	HasToken(ctx context.Context, poolAddress string) (bool, error)
	TradedWithinLastHour(ctx context.Context) (bool, error)
	BuyExplanation(ctx context.Context, poolAddress string) (string, bool, error)
	PnlStatistics(ctx context.Context, action string) (*portfolio.PnlStats, error)
	RecordTrade(ctx context.Context, trade *portfolio.Trade) error
	RecordRejection(ctx context.Context, explanation string) error
}

// Service maps a tool name plus arguments to exactly one collaborator call.
// It performs no caching, the once-only policy for analytics lives in the
// orchestrator.
type Service struct {
	cfg *config.Config

	analytics Analytics
	pools     Pools
	trader    Trader
	publisher Publisher
	portfolio Portfolio
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:       do.MustInvoke[*config.Config](di),
		analytics: do.MustInvoke[*dexscreener.Client](di),
		pools:     do.MustInvoke[*raydium.Client](di),
		trader:    do.MustInvoke[*trader.Client](di),
		publisher: do.MustInvoke[*twitter.Client](di),
		portfolio: do.MustInvoke[*portfolio.Service](di),
	}, nil
}

func (s *Service) Execute(ctx context.Context, name catalog.ToolName, args map[string]any, callCtx CallContext) (*Outcome, error) {
	switch name {
	case catalog.ToolIdentifyPool:
		return s.identifyPool(ctx, args)
	case catalog.ToolFetchPoolData:
		return s.fetchPoolData(ctx, args)
	case catalog.ToolRetrieveCurrentPortfolio:
		return s.retrievePortfolio(ctx)
	case catalog.ToolRetrieveBuyExplanation:
		return s.retrieveBuyExplanation(ctx, args)
	case catalog.ToolRetrievePnlInformation:
		return s.retrievePnl(ctx, args)
	case catalog.ToolApproveShilling:
		return s.approveShilling(ctx, args, callCtx)
	case catalog.ToolRejectShilling:
		return s.rejectShilling(ctx, args)
	case catalog.ToolGeneratePostInTwitter:
		return s.publishPost(ctx, args)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func (s *Service) identifyPool(ctx context.Context, args map[string]any) (*Outcome, error) {
	address, err := stringArg(args, "pool_or_token_address")
	if err != nil {
		return nil, err
	}
	address = sanitizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("%w: pool_or_token_address contains no valid characters", ErrInvalidArguments)
	}

	pool, err := s.pools.Lookup(ctx, address)
	if err != nil {
		return nil, s.upstream("identifyPool", err)
	}

	if !pool.Exists {
		return &Outcome{
			Text:       "No Raydium pool exists for this address.",
			PoolExists: false,
		}, nil
	}

	return &Outcome{
		Text:        fmt.Sprintf("Pool found on Raydium. Pool address: %s", pool.PoolAddress),
		PoolAddress: pool.PoolAddress,
		PoolExists:  true,
	}, nil
}

func (s *Service) fetchPoolData(ctx context.Context, args map[string]any) (*Outcome, error) {
	tokenAddress, err := stringArg(args, "token_address")
	if err != nil {
		return nil, err
	}

	snapshot, err := s.analytics.TokenData(ctx, tokenAddress)
	if errors.Is(err, dexscreener.ErrUnsupportedToken) {
		return &Outcome{
			Text: "The provided token is not supported or does not belong to Solana.",
		}, nil
	}
	if err != nil {
		return nil, s.upstream("fetch_pool_data", err)
	}

	inPortfolio, err := s.portfolio.HasToken(ctx, snapshot.PairAddress)
	if err != nil {
		return nil, s.upstream("fetch_pool_data", err)
	}

	tradedRecently, err := s.portfolio.TradedWithinLastHour(ctx)
	if err != nil {
		return nil, s.upstream("fetch_pool_data", err)
	}

	balance, err := s.trader.Balance(ctx)
	if err != nil {
		return nil, s.upstream("fetch_pool_data", err)
	}

	return &Outcome{
		Text:        s.formatAnalysis(snapshot, inPortfolio, tradedRecently, balance),
		PoolAddress: snapshot.PairAddress,
	}, nil
}

func (s *Service) formatAnalysis(snapshot *dexscreener.Snapshot, inPortfolio, tradedRecently bool, balance uint64) string {
	portfolioInfo := "I don't have this token in my portfolio."
	if inPortfolio {
		portfolioInfo = "- Token already present in your portfolio. Do not buy again for this time."
	}

	recencyInfo := "You haven't traded in the last hour."
	if tradedRecently {
		recencyInfo = "- You have traded in the last hour, so do not buy again."
	}

	required := uint64(s.cfg.Agent.BuyAmountSOL*1e9) + reserveLamports
	balanceInfo := "- I have enough balance to buy this token."
	if balance < required {
		balanceInfo = "- I don't have enough balance to buy this token. So I can't buy this token right now."
	}

	return fmt.Sprintf(`Analyze the provided data and decide whether to approve or reject the purchase.

- If approved, call `+"`approveShilling`"+`.
- If rejected due to scam suspicion or portfolio presence, call `+"`rejectShilling`"+`.
- If traded in the last hour, call `+"`rejectShilling`"+` without revealing internal rules.
Liquidity: $%.2f
Volume (24h): $%.2f
Market Cap: $%.2f
Token Creation Timestamp: %s
Fully Diluted Valuation (FDV): $%.2f
Transactions (24h): Buys - %d, Sells - %d
Pool pair address: %s
%s
%s
%s`,
		snapshot.LiquidityUSD, snapshot.Volume24h, snapshot.MarketCap,
		snapshot.PairCreatedAt.UTC().Format(time.RFC3339), snapshot.FDV,
		snapshot.Buys24h, snapshot.Sells24h,
		snapshot.PairAddress,
		portfolioInfo, recencyInfo, balanceInfo)
}

func (s *Service) retrievePortfolio(ctx context.Context) (*Outcome, error) {
	holdings, err := s.portfolio.Holdings(ctx)
	if err != nil {
		return nil, s.upstream("retrieveCurrentPortfolio", err)
	}

	if len(holdings) == 0 {
		return &Outcome{Text: "My portfolio is empty, I now decide what to buy"}, nil
	}

	var builder strings.Builder
	builder.WriteString("I have these tokens:\n")
	for _, h := range holdings {
		builder.WriteString(fmt.Sprintf("- token amount: %v, symbol: %s, name: %s, pool address: %s, token address: %s\n",
			h.Amount, h.Symbol, h.Name, h.PoolAddress, h.TokenAddress))
	}
	builder.WriteString(fmt.Sprintf("**Agent wallet**: [View on Solscan](https://solscan.io/account/%s)",
		s.cfg.Agent.WalletAddress))

	return &Outcome{Text: builder.String()}, nil
}

func (s *Service) retrieveBuyExplanation(ctx context.Context, args map[string]any) (*Outcome, error) {
	poolAddress, err := stringArg(args, "pool_address")
	if err != nil {
		return nil, err
	}

	explanation, found, err := s.portfolio.BuyExplanation(ctx, poolAddress)
	if err != nil {
		return nil, s.upstream("retrieveBuyExplanation", err)
	}

	if !found {
		return &Outcome{Text: "I don't have this token in my portfolio"}, nil
	}

	return &Outcome{Text: fmt.Sprintf("Your decision: %s", explanation)}, nil
}

func (s *Service) retrievePnl(ctx context.Context, args map[string]any) (*Outcome, error) {
	action, err := stringArg(args, "action")
	if err != nil {
		return nil, err
	}

	stats, err := s.portfolio.PnlStatistics(ctx, action)
	if err != nil {
		return nil, s.upstream("retrievePnlInformation", err)
	}

	return &Outcome{
		Text: fmt.Sprintf("Realized PnL: %.9f SOL (%.2f%%) over %d closed trades.",
			stats.RealizedSOL, stats.RealizedPercent, stats.TradeCount),
	}, nil
}

func (s *Service) approveShilling(ctx context.Context, args map[string]any, callCtx CallContext) (*Outcome, error) {
	if !callCtx.TradingAllowed {
		return nil, fmt.Errorf("%w: approveShilling is not available in this mode", ErrUnknownTool)
	}

	explanation, err := stringArg(args, "explanation")
	if err != nil {
		return nil, err
	}
	poolAddress, err := stringArg(args, "poolAddress")
	if err != nil {
		return nil, err
	}

	slog.Info("Executing approved swap",
		"pool_address", poolAddress,
		"shilled_by", callCtx.WalletAddress,
		"amount_sol", s.cfg.Agent.BuyAmountSOL)

	swap, err := s.trader.Swap(ctx, poolAddress, s.cfg.Agent.BuyAmountSOL)
	if err != nil {
		return nil, s.upstream("approveShilling", err)
	}

	trade := &portfolio.Trade{
		ID:                 uuid.NewString(),
		PoolAddress:        poolAddress,
		TokenAddress:       swap.TokenAddress,
		TokenSymbol:        swap.TokenSymbol,
		TokenName:          swap.TokenName,
		TxID:               swap.TxID,
		QuoteTokenQuantity: swap.AmountOut,
		BaseTokenQuantity:  swap.AmountIn,
		Explanation:        explanation,
		CreatedAt:          time.Now(),
	}

	if err = s.portfolio.RecordTrade(ctx, trade); err != nil {
		return nil, s.upstream("approveShilling", err)
	}

	text := fmt.Sprintf(`%s

Transaction Details:
- Amount Spent: %v %s
- Amount of Bought token: %v %s
- Token Address: [%s](https://solscan.io/account/%s)
- Transaction link: [%s](https://solscan.io/tx/%s)
- Transaction fee: %v SOL

The token purchase has been completed successfully.
Remember, investing always involves risk. Good luck!`,
		explanation,
		swap.AmountIn, swap.TokenIn,
		swap.AmountOut, swap.TokenSymbol,
		swap.TokenAddress, swap.TokenAddress,
		swap.TxID, swap.TxID,
		swap.FeeSOL)

	return &Outcome{
		Text:        text,
		PoolAddress: poolAddress,
		Trade:       trade,
	}, nil
}

func (s *Service) rejectShilling(ctx context.Context, args map[string]any) (*Outcome, error) {
	explanation, err := stringArg(args, "explanation")
	if err != nil {
		return nil, err
	}

	if err = s.portfolio.RecordRejection(ctx, explanation); err != nil {
		return nil, s.upstream("rejectShilling", err)
	}

	return &Outcome{Text: explanation}, nil
}

func (s *Service) publishPost(ctx context.Context, args map[string]any) (*Outcome, error) {
	data, err := stringArg(args, "data")
	if err != nil {
		return nil, err
	}

	posted, err := s.publisher.Publish(ctx, data)
	if err != nil {
		return nil, s.upstream("generatePostInTwitter", err)
	}

	return &Outcome{Text: posted}, nil
}

func (s *Service) upstream(tool string, err error) error {
	slog.Error("Tool collaborator failed",
		"tool", tool,
		"error", err,
		"telegram", true)

	return fmt.Errorf("%w: %s: %w", ErrUpstreamFailure, tool, err)
}

func stringArg(args map[string]any, name string) (string, error) {
	value, ok := args[name]
	if !ok {
		return "", fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, name)
	}

	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("%w: parameter %q must be a non-empty string", ErrInvalidArguments, name)
	}

	return strings.TrimSpace(str), nil
}

// sanitizeAddress strips quoting and punctuation the model tends to carry
// over from user messages, keeping only base58 characters.
func sanitizeAddress(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '1' && r <= '9', r >= 'A' && r <= 'H', r >= 'J' && r <= 'N',
			r >= 'P' && r <= 'Z', r >= 'a' && r <= 'k', r >= 'm' && r <= 'z':
			return r
		default:
			return -1
		}
	}, raw)
}
