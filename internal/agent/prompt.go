package agent

import (
	_ "embed"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/rtzll/insight/internal/model"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

const (
	historyKey = "history"
	inputKey   = "input"
)

// newChatTemplate renders the system prompt followed by the stored history
// and the new user message. Placeholders are copied verbatim, so user text
// is never parsed as a template.
func newChatTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPromptTemplate),
		schema.MessagesPlaceholder(historyKey, true),
		schema.MessagesPlaceholder(inputKey, false),
	)
}

func templateVars(videoID string, history []*schema.Message, utterance string) map[string]any {
	return map[string]any{
		"VideoTool": model.VideoToolName,
		"PaperTool": model.PaperToolName,
		"VideoID":   videoID,
		historyKey:  history,
		inputKey:    []*schema.Message{schema.UserMessage(utterance)},
	}
}
