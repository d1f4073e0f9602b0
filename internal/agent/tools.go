package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/rtzll/insight/internal/model"
)

// Tools are the retrieval backends available to one chat turn.
type Tools struct {
	Video  model.RetrievalTool
	Papers model.RetrievalTool
	// VideoID is mentioned in the system prompt when set.
	VideoID string
}

type toolInput struct {
	Input string `json:"input"`
}

func toolInfo(name, desc string) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: name,
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {
				Type:     schema.String,
				Desc:     "The search query, phrased as a full question or statement.",
				Required: true,
			},
		}),
	}
}

// ToolInfos describes both tools to the chat model. They are bound once,
// independent of which session is chatting.
func ToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		toolInfo(model.VideoToolName, model.VideoToolDescription),
		toolInfo(model.PaperToolName, model.PaperToolDescription),
	}
}

// toolErrors remembers the first failure of a turn so the caller can report
// its kind after the graph has wrapped it.
type toolErrors struct {
	mu    sync.Mutex
	first error
}

func (t *toolErrors) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.first == nil {
		t.first = err
	}
}

func (t *toolErrors) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.first
}

func newInvokableTool(rt model.RetrievalTool, errs *toolErrors) tool.InvokableTool {
	return utils.NewTool(
		toolInfo(rt.Name(), rt.Description()),
		func(ctx context.Context, in *toolInput) (string, error) {
			query := strings.TrimSpace(in.Input)
			if query == "" {
				return "The input argument is empty. Provide a search query.", nil
			}
			out, err := rt.Query(ctx, query)
			if err != nil {
				errs.record(err)
				return "", err
			}
			return out, nil
		},
	)
}

func (t Tools) build(errs *toolErrors) []tool.BaseTool {
	var out []tool.BaseTool
	if t.Video != nil {
		out = append(out, newInvokableTool(t.Video, errs))
	}
	if t.Papers != nil {
		out = append(out, newInvokableTool(t.Papers, errs))
	}
	return out
}
