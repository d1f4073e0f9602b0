package model

import "context"

// Tool metadata as presented to the chat agent.
const (
	VideoToolName        = "youtube_transcript"
	VideoToolDescription = "Contains the YouTube video transcript useful for answering user queries."
	PaperToolName        = "research_papers_with_title_and_abstract"
	PaperToolDescription = "Provides titles and abstracts of relevant research papers for each user query."
)

// RetrievalTool is a named query capability over one index.
type RetrievalTool interface {
	Name() string
	Description() string
	// Query returns plain text context relevant to input.
	Query(ctx context.Context, input string) (string, error)
}
