package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rtzll/insight/pkg/logx"
)

// MCPSessionID is the app session shared by all MCP tool calls.
const MCPSessionID = "mcp"

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"insight-server",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{app: app, mcpServer: mcpServer}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("analyze_video",
		mcp.WithDescription("Summarize a YouTube video, suggest questions for the speaker and find related research papers. Must run before query_papers and chat_video."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
	), s.handleAnalyze)

	s.mcpServer.AddTool(mcp.NewTool("query_papers",
		mcp.WithDescription("Answer a question from the research paper index, returning a short answer and relevant papers with abstracts."),
		mcp.WithString("prompt",
			mcp.Description("Question about the research literature"),
			mcp.Required(),
		),
	), s.handleQuery)

	s.mcpServer.AddTool(mcp.NewTool("chat_video",
		mcp.WithDescription("Continue a conversation about the analyzed video. The assistant draws on the transcript and the research papers."),
		mcp.WithString("message",
			mcp.Description("Chat message"),
			mcp.Required(),
		),
	), s.handleChat)

	s.mcpServer.AddTool(mcp.NewTool("get_youtube_transcript",
		mcp.WithDescription("Get the existing captions of a YouTube video as plain text. Fails if the video has no captions."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or ID"),
			mcp.Required(),
		),
	), s.handleTranscript)
}

func (s *MCPServer) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}

	res, err := s.app.Analyze(ctx, MCPSessionID, url)
	if err != nil {
		logx.Error().Err(err).Str("tool", "analyze_video").Msg("mcp tool failed")
		return mcp.NewToolResultErrorFromErr("analysis failed", err), nil
	}
	return structuredResult(AnalysisMarkdown(res), res)
}

func (s *MCPServer) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt parameter is required and must be a string"), nil
	}

	res, err := s.app.Query(ctx, MCPSessionID, prompt)
	if err != nil {
		logx.Error().Err(err).Str("tool", "query_papers").Msg("mcp tool failed")
		return mcp.NewToolResultErrorFromErr("query failed - run analyze_video first", err), nil
	}
	return structuredResult(PapersMarkdown(res), res)
}

func (s *MCPServer) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message parameter is required and must be a string"), nil
	}

	answer, err := s.app.Chat(ctx, MCPSessionID, message)
	if err != nil {
		logx.Error().Err(err).Str("tool", "chat_video").Msg("mcp tool failed")
		return mcp.NewToolResultErrorFromErr("chat failed - run analyze_video first", err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *MCPServer) handleTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}

	doc, err := s.app.Transcript(ctx, url)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("no captions available", err), nil
	}
	return mcp.NewToolResultText(doc.Text), nil
}

func structuredResult(text string, v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewTextContent(string(raw)),
		},
	}, nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)

		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.Start(addr) }()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return httpServer.Shutdown(context.Background())
		}
	}

	return server.ServeStdio(s.mcpServer)
}
