package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pysugar/digital-twin/internal/auth/token"
)

// historyWindow bounds how many prior turns are replayed to the model.
const historyWindow = 20

// ModelClient is the slice of the OpenAI client the loop needs; tests
// substitute a scripted implementation.
type ModelClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Loop drives one chat request as a state machine:
//
//	AwaitingModel → DispatchingTools → AwaitingModel → ... → Done | Aborted
//
// From AwaitingModel the model is queried with the turn history and the
// advertised tool set. A response containing tool calls moves to
// DispatchingTools: each call executes sequentially and its result is
// appended before the next model query, so the model is never queried with
// unresolved tool calls outstanding. A plain answer ends in Done. The
// iteration cap and model-query failures end in Aborted with whatever
// partial answer exists.
type Loop struct {
	model         ModelClient
	modelName     string
	registry      *Registry
	executor      *Executor
	tokens        *token.Manager
	maxIterations int
	modelTimeout  time.Duration

	now func() time.Time
}

// NewLoop creates the orchestration loop.
func NewLoop(model ModelClient, modelName string, registry *Registry, executor *Executor, tokens *token.Manager, maxIterations int, modelTimeout time.Duration) *Loop {
	return &Loop{
		model:         model,
		modelName:     modelName,
		registry:      registry,
		executor:      executor,
		tokens:        tokens,
		maxIterations: maxIterations,
		modelTimeout:  modelTimeout,
		now:           time.Now,
	}
}

// Run processes one chat request. userID may be empty for anonymous
// sessions, which get the no-tools prompt and no tool set. The returned
// error is non-nil only for fatal failures (token store breakage);
// model-query failures and cap exhaustion return an Aborted result with
// a best-effort partial answer instead.
func (l *Loop) Run(ctx context.Context, userID string, history []Message, userMessage string) (*Result, error) {
	connected, err := l.tokens.Connected(ctx, userID)
	if err != nil {
		return nil, err
	}
	available := l.registry.Available(connected)
	if userID == "" {
		available = nil
	}

	msgs := l.buildMessages(available, history, userMessage)
	tools := openAITools(available)

	var records []ToolCallRecord
	var partial string

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		// AwaitingModel
		assistant, err := l.queryModel(ctx, msgs, tools)
		if err != nil {
			log.Printf("❌ Model query failed (iteration %d): %v", iteration, err)
			return &Result{
				Text:      bestEffortText(partial),
				Status:    StatusAborted,
				ToolCalls: records,
			}, nil
		}

		if len(assistant.ToolCalls) == 0 {
			// Done: plain answer, no further tool requests.
			text := assistant.Content
			if text == "" {
				text = "I couldn't generate a response."
			}
			return &Result{Text: text, Status: StatusDone, ToolCalls: records}, nil
		}

		// DispatchingTools: execute each requested call in order and
		// append every result before querying the model again.
		if assistant.Content != "" {
			partial = assistant.Content
		}
		msgs = append(msgs, assistant)

		for _, tc := range assistant.ToolCalls {
			args := map[string]any{}
			var result string
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				result = fmt.Sprintf("Invalid arguments for %s: not valid JSON", tc.Function.Name)
			} else {
				log.Printf("🤖 Model requested tool %s (args: %s)", tc.Function.Name, tc.Function.Arguments)
				result, err = l.executor.Execute(ctx, userID, tc.Function.Name, args)
				if err != nil {
					return nil, err
				}
			}

			records = append(records, ToolCallRecord{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
				Result:    result,
			})
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	log.Printf("⚠️ Iteration cap (%d) reached, aborting loop", l.maxIterations)
	return &Result{
		Text:      bestEffortText(partial),
		Status:    StatusAborted,
		ToolCalls: records,
	}, nil
}

func (l *Loop) queryModel(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, l.modelTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    l.modelName,
		Messages: msgs,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	resp, err := l.model.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message, nil
}

// buildMessages assembles system prompt, replayed history (including
// prior tool calls and their results) and the new user message.
func (l *Loop) buildMessages(available []*Descriptor, history []Message, userMessage string) []openai.ChatCompletionMessage {
	prompt := systemPromptNoTools(l.now())
	if len(available) > 0 {
		prompt = systemPromptWithTools(l.now())
	}
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		switch m.Role {
		case "user":
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case "assistant":
			if len(m.ToolCalls) == 0 {
				msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
				continue
			}
			assistant := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for i, tc := range m.ToolCalls {
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", i)
				}
				args, _ := json.Marshal(tc.Arguments)
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			msgs = append(msgs, assistant)
			for i, tc := range m.ToolCalls {
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", i)
				}
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: id,
					Content:    tc.Result,
				})
			}
		}
	}

	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMessage})
}

func openAITools(available []*Descriptor) []openai.Tool {
	var tools []openai.Tool
	for _, d := range available {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		})
	}
	return tools
}

func bestEffortText(partial string) string {
	if partial != "" {
		return partial
	}
	return "I wasn't able to finish answering that. Please try again."
}
