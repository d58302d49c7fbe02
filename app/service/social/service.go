package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kaja/app/client/llm"
	"kaja/app/config"
	"kaja/app/service/catalog"
	"kaja/app/service/conversation"
	"kaja/app/service/executor"
	"kaja/app/service/portfolio"

	_ "embed"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

//go:embed post_prompt.txt
var postPrompt string

// Pnl resolves realized profit for a trade, needed for sell posts.
type Pnl interface {
	TradePnl(ctx context.Context, tradeID string) (float64, float64, error)
}

// Service turns a completed trade into one social-media post. It is a
// single-shot flow: one model invocation, at most one publish attempt, no
// conversation state.
type Service struct {
	cfg      *config.Config
	catalog  *catalog.Service
	executor conversation.ToolRunner
	backend  conversation.Backend
	pnl      Pnl

	httpClient *http.Client
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg,
		do.MustInvoke[*catalog.Service](di),
		do.MustInvoke[*executor.Service](di),
		llm.NewClient(cfg.OpenAI.Social),
		do.MustInvoke[*portfolio.Service](di),
	), nil
}

func NewService(cfg *config.Config, cat *catalog.Service, runner conversation.ToolRunner, backend conversation.Backend, pnl Pnl) *Service {
	return &Service{
		cfg:      cfg,
		catalog:  cat,
		executor: runner,
		backend:  backend,
		pnl:      pnl,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PublishTradePost asks the model to write a post about the trade and, if it
// requests the publish tool, executes it. tradeType must be "buy" or "sell".
func (s *Service) PublishTradePost(ctx context.Context, trade *portfolio.Trade, tradeType, userWallet string) error {
	tradeType = strings.ToLower(tradeType)
	if tradeType != "buy" && tradeType != "sell" {
		return fmt.Errorf("trade_type must be either 'buy' or 'sell', got %q", tradeType)
	}

	var pnlLine string
	if tradeType == "sell" {
		pnlSOL, pnlPercent, err := s.pnl.TradePnl(ctx, trade.ID)
		if err != nil {
			return fmt.Errorf("pnl.TradePnl: %w", err)
		}
		pnlLine = fmt.Sprintf("- Got also PNL: %.9f SOL, how much I earned/lost in percentage: %.2f%%", pnlSOL, pnlPercent)
	}

	if userWallet == "" {
		userWallet = "Anonymous"
	}

	prompt := fmt.Sprintf(`I need to publish a post with trade type: %s. For PNL, do not use scientific format.
Token ticker: %s, full name: %s
- Amount of token: %v (%.4f SOL)
- Sol scan link: %s
- User wallet address: %s
%s`,
		tradeType,
		trade.TokenSymbol, trade.TokenName,
		trade.QuoteTokenQuantity, trade.BaseTokenQuantity,
		s.shortenURL(ctx, "https://solscan.io/tx/"+trade.TxID),
		userWallet,
		pnlLine)

	reply, err := s.backend.Complete(ctx, llm.Request{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: postPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Tools:      s.catalog.OpenAITools(catalog.ModeSocialPost),
		ToolChoice: llm.ChoiceAuto,
	})
	if err != nil {
		return fmt.Errorf("backend.Complete: %w", err)
	}

	if reply.Call == nil {
		slog.Warn("Model produced no publish call for trade post", "trade_id", trade.ID)
		return nil
	}

	if catalog.ToolName(reply.Call.Name) != catalog.ToolGeneratePostInTwitter {
		return fmt.Errorf("%w: %q", executor.ErrUnknownTool, reply.Call.Name)
	}

	var args map[string]any
	if err = json.Unmarshal([]byte(reply.Call.Arguments), &args); err != nil {
		return fmt.Errorf("failed to parse publish arguments: %w", err)
	}

	out, err := s.executor.Execute(ctx, catalog.ToolGeneratePostInTwitter, args, executor.CallContext{
		WalletAddress: userWallet,
	})
	if err != nil {
		return fmt.Errorf("executor.Execute: %w", err)
	}

	slog.Info("Published trade post",
		"trade_id", trade.ID,
		"text", out.Text,
		"telegram", true)

	return nil
}

// shortenURL asks TinyURL for a short link, falling back to the original on
// any failure.
func (s *Service) shortenURL(ctx context.Context, long string) string {
	apiURL := "https://tinyurl.com/api-create.php?url=" + url.QueryEscape(long)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return long
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return long
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return long
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil || len(body) == 0 {
		return long
	}

	return strings.TrimSpace(string(body))
}
