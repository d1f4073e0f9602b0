// Package agent routes chat turns between the transcript and paper
// retrieval tools with an eino tool calling graph.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/pkg/logx"
)

const (
	nodePrompt    = "prompt"
	nodeChatModel = "chat_model"
	nodeTools     = "tools"

	DefaultMaxToolCalls = 5

	fallbackAnswer = "I could not find an answer to that in the video or the research papers."
)

// turnState is graph local state for one chat turn. It is only touched
// inside eino state handlers.
type turnState struct {
	History      []*schema.Message
	ToolCalls    int
	LimitReached bool
	idSeq        int
}

// Router answers chat turns over a session's retrieval tools.
type Router struct {
	cm           einomodel.ChatModel
	history      HistoryRepository
	maxToolCalls int
}

// NewRouter binds both tool descriptions to cm. cm must not be shared with
// another router.
func NewRouter(cm einomodel.ChatModel, history HistoryRepository, maxToolCalls int) (*Router, error) {
	if cm == nil {
		return nil, errors.New("chat model is nil")
	}
	if history == nil {
		history = NewMemoryHistory()
	}
	if maxToolCalls <= 0 {
		maxToolCalls = DefaultMaxToolCalls
	}
	if err := cm.BindTools(ToolInfos()); err != nil {
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}
	return &Router{cm: cm, history: history, maxToolCalls: maxToolCalls}, nil
}

// Chat runs one turn. The user message and the reply are appended to the
// conversation only when the turn succeeds.
func (r *Router) Chat(ctx context.Context, conversationID, utterance string, tools Tools) (string, error) {
	if tools.Video == nil {
		return "", model.ErrToolNotReady
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", errors.New("message is empty")
	}

	history, err := r.history.Load(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("loading conversation history: %w", err)
	}

	errs := &toolErrors{}
	runnable, err := r.compile(ctx, tools.build(errs))
	if err != nil {
		return "", err
	}

	out, err := runnable.Invoke(ctx, templateVars(tools.VideoID, history, utterance),
		compose.WithCallbacks(NewCallbacks()))
	if err != nil {
		if toolErr := errs.err(); toolErr != nil {
			return "", toolErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: chat turn: %w", model.ErrSchemaValidation, ctxErr)
		}
		return "", fmt.Errorf("%w: chat turn failed: %w", model.ErrSchemaValidation, err)
	}

	answer := ""
	if out != nil {
		answer = strings.TrimSpace(out.Content)
	}
	if answer == "" {
		answer = fallbackAnswer
	}

	if err := r.history.Append(ctx, conversationID,
		schema.UserMessage(utterance),
		schema.AssistantMessage(answer, nil),
	); err != nil {
		return "", fmt.Errorf("saving conversation history: %w", err)
	}
	return answer, nil
}

// Reset drops the stored conversation.
func (r *Router) Reset(ctx context.Context, conversationID string) error {
	return r.history.Clear(ctx, conversationID)
}

func (r *Router) compile(ctx context.Context, tools []tool.BaseTool) (compose.Runnable[map[string]any, *schema.Message], error) {
	g := compose.NewGraph[map[string]any, *schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *turnState {
			return &turnState{}
		}),
	)

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               tools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().Str("tool_name", name).Str("arguments", input).Msg("unknown tool call")
			return fmt.Sprintf(`{"error":"unknown_tool","name":%q,"note":"answer without this tool"}`, name), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := g.AddChatTemplateNode(nodePrompt, newChatTemplate()); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := g.AddChatModelNode(nodeChatModel, r.cm,
		compose.WithStatePreHandler(r.modelPreHandler),
		compose.WithStatePostHandler(modelPostHandler),
	); err != nil {
		return nil, fmt.Errorf("add chat model node: %w", err)
	}
	if err := g.AddToolsNode(nodeTools, toolsNode,
		compose.WithStatePreHandler(r.toolsPreHandler),
	); err != nil {
		return nil, fmt.Errorf("add tools node: %w", err)
	}

	for _, e := range [][2]string{
		{compose.START, nodePrompt},
		{nodePrompt, nodeChatModel},
		{nodeTools, nodeChatModel},
	} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	branch := compose.NewGraphBranch(toolsCondition, map[string]bool{
		nodeTools:   true,
		compose.END: true,
	})
	if err := g.AddBranch(nodeChatModel, branch); err != nil {
		return nil, fmt.Errorf("add tools branch: %w", err)
	}

	maxSteps := max(10+r.maxToolCalls*2, 20)
	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		return nil, fmt.Errorf("compile chat graph: %w", err)
	}
	return runnable, nil
}

func (r *Router) modelPreHandler(ctx context.Context, in []*schema.Message, state *turnState) ([]*schema.Message, error) {
	state.History = append(state.History, in...)

	if !state.LimitReached && state.ToolCalls >= r.maxToolCalls {
		state.LimitReached = true
	}
	if state.LimitReached {
		state.History = append(state.History, schema.SystemMessage(fmt.Sprintf(
			"You have reached the maximum number of tool calls (%d). "+
				"Answer the user with the information you already have.",
			r.maxToolCalls,
		)))
	}
	return state.History, nil
}

func modelPostHandler(ctx context.Context, out *schema.Message, state *turnState) (*schema.Message, error) {
	if out == nil {
		return out, nil
	}
	// some providers omit tool call ids
	for i := range out.ToolCalls {
		if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
			state.idSeq++
			out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.idSeq)
		}
	}
	state.History = append(state.History, out)
	return out, nil
}

func (r *Router) toolsPreHandler(ctx context.Context, in *schema.Message, state *turnState) (*schema.Message, error) {
	state.ToolCalls++
	logx.Debug().Int("tool_calls", state.ToolCalls).Int("max_tool_calls", r.maxToolCalls).Msg("executing tools")
	return in, nil
}

func toolsCondition(ctx context.Context, msg *schema.Message) (string, error) {
	var limitReached bool
	if err := compose.ProcessState(ctx, func(_ context.Context, state *turnState) error {
		limitReached = state.LimitReached
		return nil
	}); err != nil {
		return "", err
	}
	if limitReached || msg == nil || len(msg.ToolCalls) == 0 {
		return compose.END, nil
	}
	return nodeTools, nil
}
