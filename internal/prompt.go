package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// SummaryInstruction is the query the summary step retrieves against and
// answers.
const SummaryInstruction = "Summarize the video and generate technical questions for the video to ask the speaker."

const paperQueryPrefix = "Extract research papers relevant to the video summary: "

// PaperQuery derives the paper search query from a video summary.
func PaperQuery(summary string) string {
	return paperQueryPrefix + summary
}

const researchTemplate = `Context information is below.
---------
{{.Context}}
---------
You are an intelligent research chatbot that can answer questions.
Answer the user query along with the relevant research papers with title and abstract from the above context in JSON format, if exists.

Query: {{.Query}}
Answer: `

// PromptData for template injection
type PromptData struct {
	Context string
	Query   string
	VideoID string
	Title   string
}

// PromptManager handles loading and processing prompt templates
type PromptManager struct {
	promptFile   string
	promptString string
	configDir    string
}

// NewPromptManager creates a new prompt manager. promptSetting is a
// template string, a file path, or empty for prompt.txt in configDir.
func NewPromptManager(configDir, promptSetting string) *PromptManager {
	pm := &PromptManager{configDir: configDir}
	if promptSetting != "" {
		if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
			pm.promptFile = promptSetting
		} else {
			pm.promptString = promptSetting
		}
	}
	return pm
}

// SummaryPrompt renders the question answering template used by the
// summary step.
func (pm *PromptManager) SummaryPrompt(data PromptData) (string, error) {
	content, err := pm.templateContent()
	if err != nil {
		return "", err
	}
	return renderTemplate("summary", content, data)
}

// ResearchPrompt renders the fixed paper query template.
func ResearchPrompt(contextText, query string) (string, error) {
	return renderTemplate("research", researchTemplate, PromptData{Context: contextText, Query: query})
}

func (pm *PromptManager) templateContent() (string, error) {
	if pm.promptString != "" {
		return pm.promptString, nil
	}

	promptFile := pm.promptFile
	if promptFile == "" {
		promptFile = filepath.Join(pm.configDir, "prompt.txt")
	}
	content, err := os.ReadFile(promptFile)
	if err == nil {
		return string(content), nil
	}
	if pm.promptFile != "" || !os.IsNotExist(err) {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}

	// first run before the default was written
	content, err = defaultFS.ReadFile("prompt.txt")
	if err != nil {
		return "", fmt.Errorf("reading embedded prompt template: %w", err)
	}
	return string(content), nil
}

func renderTemplate(name, content string, data PromptData) (string, error) {
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return buf.String(), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}
	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".template") || strings.Contains(s, ".tmpl") {
		return true
	}
	if len(s) > 200 {
		return false
	}
	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
