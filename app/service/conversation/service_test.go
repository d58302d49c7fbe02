package conversation_test

import (
	"context"
	"errors"
	"testing"

	"kaja/app/client/llm"
	"kaja/app/config"
	"kaja/app/service/catalog"
	"kaja/app/service/conversation"
	"kaja/app/service/executor"
	"kaja/app/service/portfolio"
	"kaja/app/service/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data map[string][]byte
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	return s.data[key], nil
}

func (s *memStore) Set(_ context.Context, key string, blob []byte) error {
	s.sets++
	s.data[key] = blob
	return nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

// scriptedBackend replays a fixed sequence of replies and records every
// request it receives.
type scriptedBackend struct {
	replies  []*llm.Reply
	err      error
	requests []llm.Request
}

func (b *scriptedBackend) Complete(_ context.Context, req llm.Request) (*llm.Reply, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}

	if len(b.replies) == 0 {
		panic("backend script exhausted")
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply, nil
}

type runnerCall struct {
	name catalog.ToolName
	args map[string]any
}

// scriptedRunner returns one outcome per call in order and records the calls.
type scriptedRunner struct {
	outcomes []*executor.Outcome
	errs     []error
	calls    []runnerCall
	lastCtx  executor.CallContext
}

func (r *scriptedRunner) Execute(_ context.Context, name catalog.ToolName, args map[string]any, callCtx executor.CallContext) (*executor.Outcome, error) {
	r.calls = append(r.calls, runnerCall{name: name, args: args})
	r.lastCtx = callCtx

	i := len(r.calls) - 1
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	var out *executor.Outcome
	if i < len(r.outcomes) {
		out = r.outcomes[i]
	}
	return out, err
}

func (r *scriptedRunner) names() []catalog.ToolName {
	names := make([]catalog.ToolName, 0, len(r.calls))
	for _, c := range r.calls {
		names = append(names, c.name)
	}
	return names
}

func contentReply(text string) *llm.Reply {
	return &llm.Reply{Content: text}
}

func callReply(id string, name catalog.ToolName, arguments string) *llm.Reply {
	return &llm.Reply{Call: &llm.ToolCall{ID: id, Name: string(name), Arguments: arguments}}
}

type fixture struct {
	svc     *conversation.Service
	backend *scriptedBackend
	runner  *scriptedRunner
	store   *memStore
	history *session.Service
}

func newFixture(t *testing.T, backend *scriptedBackend, runner *scriptedRunner) *fixture {
	t.Helper()

	cat, err := catalog.Build()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Agent.MaxRounds = 4

	store := newMemStore()
	history := session.NewService(store)

	return &fixture{
		svc:     conversation.NewService(cfg, cat, runner, history, backend),
		backend: backend,
		runner:  runner,
		store:   store,
		history: history,
	}
}

func tradingRequest(message string) conversation.Request {
	return conversation.Request{
		SessionID:      "session-1",
		UserWallet:     "user-wallet",
		Message:        message,
		TradingAllowed: true,
	}
}

func TestAnswer_ContentReply(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{contentReply("Tell me more about this token.")}},
		&scriptedRunner{},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("hi Kaja"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusDiscuss, out.Status)
	assert.Equal(t, "Tell me more about this token.", out.Text)
	assert.Empty(t, fx.runner.calls)
	assert.Equal(t, 1, fx.store.sets)

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, "hi Kaja", turns[0].Content)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
}

func TestAnswer_FirstRoundForcesToolChoice(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolRetrieveCurrentPortfolio, `{}`),
			contentReply("Here is my portfolio."),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{{Text: "My portfolio is empty, I now decide what to buy"}}},
	)

	_, err := fx.svc.Answer(context.Background(), tradingRequest("what do you hold?"))
	require.NoError(t, err)

	require.Len(t, fx.backend.requests, 2)
	assert.Equal(t, llm.ChoiceRequired, fx.backend.requests[0].ToolChoice)
	assert.Equal(t, llm.ChoiceAuto, fx.backend.requests[1].ToolChoice)
}

func TestAnswer_ApproveFlow(t *testing.T) {
	trade := &portfolio.Trade{ID: "trade-1", PoolAddress: "pool-1"}

	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
			callReply("c2", catalog.ToolFetchPoolData, `{"token_address":"token-1"}`),
			callReply("c3", catalog.ToolApproveShilling, `{"explanation":"strong liquidity","poolAddress":"pool-1"}`),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{
			{Text: "Pool found on Raydium. Pool address: pool-1", PoolAddress: "pool-1", PoolExists: true},
			{Text: "analytics data", PoolAddress: "pool-1"},
			{Text: "Purchase complete.", PoolAddress: "pool-1", Trade: trade},
		}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusApprove, out.Status)
	assert.Equal(t, "Purchase complete.", out.Text)
	assert.Equal(t, trade, out.Artifact)

	assert.Equal(t, []catalog.ToolName{
		catalog.ToolIdentifyPool,
		catalog.ToolFetchPoolData,
		catalog.ToolApproveShilling,
	}, fx.runner.names())

	assert.Equal(t, "user-wallet", fx.runner.lastCtx.WalletAddress)
	assert.True(t, fx.runner.lastCtx.TradingAllowed)

	// user + 3x(assistant call + tool result)
	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 7)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	require.Len(t, turns[1].ToolCalls, 1)
	assert.Equal(t, "identifyPool", turns[1].ToolCalls[0].Name)
	assert.Equal(t, session.RoleTool, turns[2].Role)
	assert.Equal(t, "c1", turns[2].ToolCallID)
}

func TestAnswer_FetchBeforeIdentifyRefused(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolFetchPoolData, `{"token_address":"token-1"}`),
			contentReply("Let me verify the pool first."),
		}},
		&scriptedRunner{},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("fetch data for token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusDiscuss, out.Status)
	assert.Empty(t, fx.runner.calls, "analytics must not run before the pool is identified")

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, session.RoleTool, turns[2].Role)
	assert.Contains(t, turns[2].Content, "identifyPool first")
}

func TestAnswer_FetchOnlyOnce(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
			callReply("c2", catalog.ToolFetchPoolData, `{"token_address":"token-1"}`),
			callReply("c3", catalog.ToolFetchPoolData, `{"token_address":"token-1"}`),
			contentReply("Using the data I already have."),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{
			{Text: "pool found", PoolAddress: "pool-1", PoolExists: true},
			{Text: "analytics data", PoolAddress: "pool-1"},
		}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusReadyToShilling, out.Status)
	assert.Equal(t, []catalog.ToolName{
		catalog.ToolIdentifyPool,
		catalog.ToolFetchPoolData,
	}, fx.runner.names(), "analytics runs at most once per call")
}

func TestAnswer_BackendFailureLeavesHistoryUntouched(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{err: errors.New("quota exhausted")},
		&scriptedRunner{},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("hi"))
	require.Error(t, err)

	require.NotNil(t, out)
	assert.Equal(t, conversation.StatusDiscuss, out.Status)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 0, fx.store.sets, "a failed call must not grow the history")
}

func TestAnswer_TradingNotAllowed(t *testing.T) {
	t.Run("terminal tools are absent", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{contentReply("I can't buy right now.")}},
			&scriptedRunner{},
		)

		req := tradingRequest("buy this")
		req.TradingAllowed = false

		_, err := fx.svc.Answer(context.Background(), req)
		require.NoError(t, err)

		require.Len(t, fx.backend.requests, 1)
		assert.Equal(t, llm.ChoiceAuto, fx.backend.requests[0].ToolChoice)
		for _, tool := range fx.backend.requests[0].Tools {
			assert.NotEqual(t, string(catalog.ToolApproveShilling), tool.Function.Name)
			assert.NotEqual(t, string(catalog.ToolRejectShilling), tool.Function.Name)
			assert.NotEqual(t, string(catalog.ToolFetchPoolData), tool.Function.Name)
		}
	})

	t.Run("terminal call is refused without execution", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{
				callReply("c1", catalog.ToolApproveShilling, `{"explanation":"x","poolAddress":"pool-1"}`),
			}},
			&scriptedRunner{},
		)

		req := tradingRequest("buy this")
		req.TradingAllowed = false

		out, err := fx.svc.Answer(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, conversation.StatusDiscuss, out.Status)
		assert.Empty(t, fx.runner.calls)
	})
}

func TestAnswer_RoundLimit(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolRetrieveCurrentPortfolio, `{}`),
			callReply("c2", catalog.ToolRetrieveCurrentPortfolio, `{}`),
			callReply("c3", catalog.ToolRetrieveCurrentPortfolio, `{}`),
			callReply("c4", catalog.ToolRetrieveCurrentPortfolio, `{}`),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{
			{Text: "portfolio"}, {Text: "portfolio"}, {Text: "portfolio"}, {Text: "portfolio"},
		}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("loop forever"))
	require.ErrorIs(t, err, conversation.ErrNoDecision)

	require.NotNil(t, out)
	assert.Equal(t, conversation.StatusDiscuss, out.Status)
	assert.Equal(t, 1, fx.store.sets, "history is still persisted when the round limit is hit")
}

func TestAnswer_ReadyToShilling(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
			contentReply("Pool verified, want me to analyze it?"),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{
			{Text: "pool found", PoolAddress: "pool-1", PoolExists: true},
		}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("check token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusReadyToShilling, out.Status)
}

func TestAnswer_MissingPoolStaysDiscuss(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
			contentReply("There is no pool for this address."),
		}},
		&scriptedRunner{outcomes: []*executor.Outcome{
			{Text: "No Raydium pool exists for this address.", PoolExists: false},
		}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("check token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusDiscuss, out.Status)
}

func TestAnswer_RejectFlow(t *testing.T) {
	t.Run("recorded", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{
				callReply("c1", catalog.ToolRejectShilling, `{"explanation":"liquidity too thin"}`),
			}},
			&scriptedRunner{outcomes: []*executor.Outcome{{Text: "liquidity too thin"}}},
		)

		out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
		require.NoError(t, err)

		assert.Equal(t, conversation.StatusReject, out.Status)
		assert.Equal(t, "liquidity too thin", out.Text)
	})

	t.Run("record failure becomes decline", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{
				callReply("c1", catalog.ToolRejectShilling, `{"explanation":"liquidity too thin"}`),
			}},
			&scriptedRunner{errs: []error{executor.ErrUpstreamFailure}},
		)

		out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
		require.NoError(t, err)

		assert.Equal(t, conversation.StatusDecline, out.Status)
		assert.Equal(t, "liquidity too thin", out.Text)
	})
}

func TestAnswer_ApproveFailed(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolApproveShilling, `{"explanation":"x","poolAddress":"pool-1"}`),
		}},
		&scriptedRunner{errs: []error{executor.ErrUpstreamFailure}},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("buy it"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusApproveFailed, out.Status)
	assert.NotEmpty(t, out.Text)

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "Failed to proceed swap transaction.", turns[2].Content)
}

func TestAnswer_TerminalToolBadArgumentsGetsRetried(t *testing.T) {
	trade := &portfolio.Trade{ID: "trade-1", PoolAddress: "pool-1"}

	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolApproveShilling, `{"explanation":"strong liquidity"}`),
			callReply("c2", catalog.ToolApproveShilling, `{"explanation":"strong liquidity","poolAddress":"pool-1"}`),
		}},
		&scriptedRunner{
			errs:     []error{executor.ErrInvalidArguments, nil},
			outcomes: []*executor.Outcome{nil, {Text: "Purchase complete.", PoolAddress: "pool-1", Trade: trade}},
		},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("buy it"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusApprove, out.Status)
	assert.Equal(t, trade, out.Artifact)
	require.Len(t, fx.runner.calls, 2)

	// user, bad call, error feedback, corrected call, tool result
	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	assert.Equal(t, session.RoleTool, turns[2].Role)
	assert.Contains(t, turns[2].Content, "invalid tool arguments")
}

func TestAnswer_AbortExitsStayDiscuss(t *testing.T) {
	t.Run("round limit after verified pool", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{
				callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
				callReply("c2", catalog.ToolRetrieveCurrentPortfolio, `{}`),
				callReply("c3", catalog.ToolRetrieveCurrentPortfolio, `{}`),
				callReply("c4", catalog.ToolRetrieveCurrentPortfolio, `{}`),
			}},
			&scriptedRunner{outcomes: []*executor.Outcome{
				{Text: "pool found", PoolAddress: "pool-1", PoolExists: true},
				{Text: "portfolio"}, {Text: "portfolio"}, {Text: "portfolio"},
			}},
		)

		out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
		require.ErrorIs(t, err, conversation.ErrNoDecision)
		assert.Equal(t, conversation.StatusDiscuss, out.Status)
	})

	t.Run("unavailable tool after verified pool", func(t *testing.T) {
		fx := newFixture(t,
			&scriptedBackend{replies: []*llm.Reply{
				callReply("c1", catalog.ToolIdentifyPool, `{"pool_or_token_address":"token-1"}`),
				callReply("c2", catalog.ToolGeneratePostInTwitter, `{"data":"gm"}`),
			}},
			&scriptedRunner{outcomes: []*executor.Outcome{
				{Text: "pool found", PoolAddress: "pool-1", PoolExists: true},
			}},
		)

		out, err := fx.svc.Answer(context.Background(), tradingRequest("shill token-1"))
		require.NoError(t, err)
		assert.Equal(t, conversation.StatusDiscuss, out.Status)
	})
}

func TestAnswer_BadToolArguments(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			callReply("c1", catalog.ToolIdentifyPool, `not json at all`),
			contentReply("Could you paste the address again?"),
		}},
		&scriptedRunner{},
	)

	out, err := fx.svc.Answer(context.Background(), tradingRequest("check token-1"))
	require.NoError(t, err)

	assert.Equal(t, conversation.StatusDiscuss, out.Status)
	assert.Empty(t, fx.runner.calls)

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Contains(t, turns[2].Content, "not a valid JSON object")
}

func TestAnswer_HistoryAccumulatesAcrossCalls(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{
			contentReply("first answer"),
			contentReply("second answer"),
		}},
		&scriptedRunner{},
	)

	_, err := fx.svc.Answer(context.Background(), tradingRequest("first"))
	require.NoError(t, err)
	_, err = fx.svc.Answer(context.Background(), tradingRequest("second"))
	require.NoError(t, err)

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[2].Content)

	// Two system prompts, the replayed first exchange, then the new message.
	second := fx.backend.requests[1]
	assert.Len(t, second.Messages, 5)
}

func TestEndSession(t *testing.T) {
	fx := newFixture(t,
		&scriptedBackend{replies: []*llm.Reply{contentReply("hello")}},
		&scriptedRunner{},
	)

	_, err := fx.svc.Answer(context.Background(), tradingRequest("hi"))
	require.NoError(t, err)

	require.NoError(t, fx.svc.EndSession(context.Background(), "session-1"))

	turns, err := fx.history.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
