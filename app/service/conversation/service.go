package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kaja/app/client/llm"
	"kaja/app/config"
	"kaja/app/service/catalog"
	"kaja/app/service/executor"
	"kaja/app/service/session"

	_ "embed"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

//go:embed persona_prompt.txt
var personaPrompt string

//go:embed shilling_allowed_prompt.txt
var shillingAllowedPrompt string

//go:embed shilling_not_allowed_prompt.txt
var shillingNotAllowedPrompt string

const (
	backendFailureText = "I'm having trouble reaching my reasoning engine right now. Give me a moment and ask again."
	genericFailureText = "Something went wrong on my side while looking into that. Let's continue our conversation."
	noDecisionText     = "I could not reach a decision this time. Tell me more about the token and we'll take another look."
)

// ErrNoDecision means the model kept requesting tools without converging
// within the configured round limit.
var ErrNoDecision = errors.New("no decision reached within the round limit")

// Backend is the chat-completion collaborator.
type Backend interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Reply, error)
}

// ToolRunner executes a single tool request.
type ToolRunner interface {
	Execute(ctx context.Context, name catalog.ToolName, args map[string]any, callCtx executor.CallContext) (*executor.Outcome, error)
}

// Service drives the conversation loop between the model backend and the
// tool executor. Calls for the same session id are serialized; independent
// sessions run concurrently without shared locks.
type Service struct {
	cfg      *config.Config
	catalog  *catalog.Service
	executor ToolRunner
	history  *session.Service
	backend  Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg,
		do.MustInvoke[*catalog.Service](di),
		do.MustInvoke[*executor.Service](di),
		do.MustInvoke[*session.Service](di),
		llm.NewClient(cfg.OpenAI.Chat),
	), nil
}

func NewService(cfg *config.Config, cat *catalog.Service, runner ToolRunner, history *session.Service, backend Backend) *Service {
	return &Service{
		cfg:      cfg,
		catalog:  cat,
		executor: runner,
		history:  history,
		backend:  backend,
		locks:    map[string]*sync.Mutex{},
	}
}

// Answer processes one user message and produces exactly one decision
// outcome. History is appended only after the loop reaches a defined exit
// state; a backend failure leaves it untouched.
func (s *Service) Answer(ctx context.Context, req Request) (*Outcome, error) {
	unlock := s.lockSession(req.SessionID)
	defer unlock()

	prior, err := s.history.Load(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("history.Load: %w", err)
	}

	mode := catalog.ModeTradingNotAllowed
	modePrompt := shillingNotAllowedPrompt
	choice := llm.ChoiceAuto
	if req.TradingAllowed {
		mode = catalog.ModeTradingAllowed
		modePrompt = shillingAllowedPrompt
		choice = llm.ChoiceRequired
	}

	tools := s.catalog.OpenAITools(mode)

	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+3)
	messages = append(messages, systemMessage(personaPrompt), systemMessage(modePrompt))
	messages = append(messages, toMessages(prior)...)

	newTurns := []session.Turn{userTurn(req.Message)}
	messages = append(messages, toMessage(newTurns[0]))

	record := func(turn session.Turn) {
		newTurns = append(newTurns, turn)
		messages = append(messages, toMessage(turn))
	}

	callCtx := executor.CallContext{
		WalletAddress:  req.UserWallet,
		TradingAllowed: req.TradingAllowed,
	}

	var (
		outcome          *Outcome
		callErr          error
		poolIdentified   bool
		poolExists       bool
		analyticsFetched bool
		contentExit      bool
	)

loop:
	for round := 0; round < s.cfg.Agent.MaxRounds; round++ {
		reply, err := s.backend.Complete(ctx, llm.Request{
			Messages:   messages,
			Tools:      tools,
			ToolChoice: choice,
		})
		if err != nil {
			slog.Error("Model backend failed",
				"session_id", req.SessionID,
				"error", err,
				"telegram", true)

			return &Outcome{Text: backendFailureText, Status: StatusDiscuss},
				fmt.Errorf("backend.Complete: %w", err)
		}

		// The first round may force a tool call; follow-ups always let the
		// model answer in plain text.
		choice = llm.ChoiceAuto

		if reply.Call == nil {
			record(assistantTurn(reply.Content))
			outcome = &Outcome{Text: reply.Content, Status: StatusDiscuss}
			contentExit = true
			break
		}

		call := reply.Call
		name := catalog.ToolName(call.Name)

		slog.Info("Model requested tool",
			"session_id", req.SessionID,
			"tool", call.Name)

		record(assistantCallTurn(call))

		if !s.catalog.Contains(mode, name) {
			record(toolTurn(call.ID, "This tool is not available."))
			outcome = &Outcome{Text: genericFailureText, Status: StatusDiscuss}
			break
		}

		if name == catalog.ToolFetchPoolData {
			if !poolIdentified {
				record(toolTurn(call.ID, "Call identifyPool first to verify the pool before fetching analytics."))
				continue
			}
			if analyticsFetched {
				record(toolTurn(call.ID, "Analytics data was already retrieved in this conversation turn, use the earlier result."))
				continue
			}
		}

		var args map[string]any
		if err = json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			record(toolTurn(call.ID, "Tool arguments are not a valid JSON object."))
			continue
		}

		out, execErr := s.executor.Execute(ctx, name, args, callCtx)

		// Bad arguments never reach a collaborator, so even a terminal tool
		// gets the error fed back for another attempt.
		if errors.Is(execErr, executor.ErrInvalidArguments) {
			record(toolTurn(call.ID, execErr.Error()))
			continue
		}

		if name.Terminal() {
			outcome = s.finishTerminal(name, args, out, execErr, record, call.ID)
			break
		}

		switch {
		case execErr == nil:
			record(toolTurn(call.ID, out.Text))
			if name == catalog.ToolIdentifyPool {
				poolIdentified = true
				poolExists = out.PoolExists
			}
			if name == catalog.ToolFetchPoolData {
				analyticsFetched = true
			}
		case errors.Is(execErr, executor.ErrUnknownTool):
			record(toolTurn(call.ID, "This tool is not available."))
			outcome = &Outcome{Text: genericFailureText, Status: StatusDiscuss}
			break loop
		default:
			record(toolTurn(call.ID, "The tool failed to execute. Proceed without its result."))
		}
	}

	if outcome == nil {
		outcome = &Outcome{Text: noDecisionText, Status: StatusDiscuss}
		callErr = fmt.Errorf("%w (%d rounds)", ErrNoDecision, s.cfg.Agent.MaxRounds)
	}

	// A verified pool unlocks the shilling flow for the next call, but only
	// when the loop ended with a regular answer; aborts and the round limit
	// stay plain Discuss.
	if contentExit && poolExists {
		outcome.Status = StatusReadyToShilling
	}

	if err = s.history.Save(ctx, req.SessionID, append(prior, newTurns...)); err != nil {
		return outcome, fmt.Errorf("history.Save: %w", err)
	}

	return outcome, callErr
}

func (s *Service) finishTerminal(
	name catalog.ToolName,
	args map[string]any,
	out *executor.Outcome,
	execErr error,
	record func(session.Turn),
	callID string,
) *Outcome {
	explanation, _ := args["explanation"].(string)

	if name == catalog.ToolApproveShilling {
		if execErr != nil {
			slog.Error("Approve failed",
				"error", execErr,
				"telegram", true)

			record(toolTurn(callID, "Failed to proceed swap transaction."))

			return &Outcome{
				Text:   "I tried to complete the purchase, but the transaction could not be executed. Let's try again a bit later.",
				Status: StatusApproveFailed,
			}
		}

		record(toolTurn(callID, out.Text))

		return &Outcome{
			Text:     out.Text,
			Status:   StatusApprove,
			Artifact: out.Trade,
		}
	}

	if execErr != nil {
		slog.Error("Reject could not be recorded", "error", execErr)

		record(toolTurn(callID, "The rejection could not be recorded."))

		return &Outcome{Text: explanation, Status: StatusDecline}
	}

	record(toolTurn(callID, out.Text))

	return &Outcome{Text: explanation, Status: StatusReject}
}

// EndSession drops the session's history.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	if err := s.history.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("history.Clear: %w", err)
	}

	return nil
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
