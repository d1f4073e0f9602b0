package model

// TranscriptDocument is the flattened transcript of one video.
type TranscriptDocument struct {
	VideoID string
	URL     string
	Title   string
	Text    string
}

// VideoSummary is the structured output of the summary step.
type VideoSummary struct {
	Summary   string   `json:"summary" jsonschema_description:"A concise summary of the YouTube video transcript, not exceeding six sentences, serving as the basis for question generation."`
	Questions []string `json:"questions" jsonschema_description:"A curated list of contextually relevant questions intended for the speaker, derived from the video summary to simulate attendee inquiries or clarify key points discussed within the video content."`
}

// Paper is a single research paper record.
type Paper struct {
	Title    string `json:"title" jsonschema_description:"The title of the research paper"`
	Abstract string `json:"abstract" jsonschema_description:"The abstract of the research paper"`
}

// PaperCollection is the structured output of paper retrieval. Response is
// only meaningful on the query path.
type PaperCollection struct {
	Response string  `json:"response" jsonschema_description:"The response to the user query limited to 3 sentences, along with the relevant research papers."`
	Papers   []Paper `json:"papers" jsonschema_description:"List of research papers, each with a title and abstract"`
}

// AnalysisResult is what an analyze call hands back to its caller.
type AnalysisResult struct {
	VideoID   string   `json:"-"`
	Summary   string   `json:"summary"`
	Questions []string `json:"questions"`
	Papers    []Paper  `json:"papers"`
}
