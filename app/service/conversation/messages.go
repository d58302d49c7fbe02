package conversation

import (
	"kaja/app/client/llm"
	"kaja/app/service/session"

	"github.com/elliotchance/pie/v2"
	"github.com/sashabaranov/go-openai"
)

func systemMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: content,
	}
}

func userTurn(content string) session.Turn {
	return session.Turn{Role: session.RoleUser, Content: content}
}

func assistantTurn(content string) session.Turn {
	return session.Turn{Role: session.RoleAssistant, Content: content}
}

func assistantCallTurn(call *llm.ToolCall) session.Turn {
	return session.Turn{
		Role: session.RoleAssistant,
		ToolCalls: []session.ToolCall{{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		}},
	}
}

func toolTurn(callID, content string) session.Turn {
	return session.Turn{
		Role:       session.RoleTool,
		Content:    content,
		ToolCallID: callID,
	}
}

func toMessage(turn session.Turn) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role:       string(turn.Role),
		Content:    turn.Content,
		ToolCallID: turn.ToolCallID,
		ToolCalls: pie.Map(turn.ToolCalls, func(call session.ToolCall) openai.ToolCall {
			return openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			}
		}),
	}
}

func toMessages(turns []session.Turn) []openai.ChatCompletionMessage {
	return pie.Map(turns, toMessage)
}
