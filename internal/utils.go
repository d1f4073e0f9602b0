package internal

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/rtzll/insight/internal/model"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseArg normalizes YouTube video IDs and URLs into (url, id).
func ParseArg(arg string) (string, string) {
	p := ClassifyArg(arg)
	if p.Error != nil {
		return arg, arg
	}
	return p.NormalizedURL, p.ID
}

// VideoIDExtractor extracts video IDs from YouTube URLs
type VideoIDExtractor func(string) (string, error)

var getVideoID VideoIDExtractor = func(youtubeURL string) (string, error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	switch u.Host {
	case "www.youtube.com", "youtube.com", "m.youtube.com", "youtu.be":
	default:
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	// playlist URLs carry no video id
	if strings.Contains(u.Path, "/playlist") {
		return "", fmt.Errorf("this is a playlist URL, not a video URL: %s", youtubeURL)
	}

	parts := strings.Split(u.Path, "/")
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1], nil
	}
	return "", fmt.Errorf("could not extract video ID from URL: %s", youtubeURL)
}

// getPlaylistID extracts playlist ID from YouTube URLs
func getPlaylistID(youtubeURL string) (string, error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	if u.Host != "www.youtube.com" && u.Host != "youtube.com" {
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if list := u.Query().Get("list"); list != "" {
		if IsValidPlaylistID(list) {
			return list, nil
		}
		return "", fmt.Errorf("invalid playlist ID format: %s", list)
	}
	return "", fmt.Errorf("could not extract playlist ID from URL: %s", youtubeURL)
}

// IsValidYouTubeID checks if a string looks like a valid YouTube video ID
func IsValidYouTubeID(id string) bool {
	return len(id) == 11 && idPattern.MatchString(id)
}

// IsValidPlaylistID checks if a string looks like a valid YouTube playlist ID
func IsValidPlaylistID(id string) bool {
	playlistPrefixes := []string{"PL", "UU", "FL", "RD", "LP", "BP", "QL", "SV", "EL", "LL", "UC"}
	for _, prefix := range playlistPrefixes {
		if strings.HasPrefix(id, prefix) && (len(id) == 18 || len(id) == 34 || len(id) == 36) {
			return idPattern.MatchString(id)
		}
	}

	// music playlists
	if (strings.HasPrefix(id, "OLAK5uy_") || strings.HasPrefix(id, "RDCLAK5uy_")) && len(id) == 40 {
		return idPattern.MatchString(id)
	}
	return false
}

// IsLikelyCommand checks if a string looks like it might be a mistyped command
func IsLikelyCommand(arg string) bool {
	return len(arg) <= 10 && !IsValidYouTubeID(arg) && !IsValidPlaylistID(arg)
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width > 10 {
		return width - 4
	}
	return width
}

// RenderMarkdown renders markdown content with glamour
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(getTerminalWidth()),
		glamour.WithColorProfile(termenv.EnvColorProfile()),
	)
	if err != nil {
		return "", fmt.Errorf("creating terminal renderer: %w", err)
	}

	rendered, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return rendered, nil
}

// AnalysisMarkdown formats an analysis as a markdown document.
func AnalysisMarkdown(res model.AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString("# Summary\n\n")
	sb.WriteString(res.Summary)
	sb.WriteString("\n\n## Questions for the speaker\n\n")
	for i, q := range res.Questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	if len(res.Questions) == 0 {
		sb.WriteString("_none_\n")
	}
	sb.WriteString("\n## Related research papers\n\n")
	for _, p := range res.Papers {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", p.Title, p.Abstract)
	}
	if len(res.Papers) == 0 {
		sb.WriteString("_none found_\n")
	}
	return sb.String()
}

// PapersMarkdown formats a direct query answer as markdown.
func PapersMarkdown(pc model.PaperCollection) string {
	var sb strings.Builder
	sb.WriteString(pc.Response)
	sb.WriteString("\n\n")
	for _, p := range pc.Papers {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", p.Title, p.Abstract)
	}
	return sb.String()
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// EnsureDirs creates directories if needed
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOpenAIAPIKey checks if the OpenAI API key is set and returns a standardized error if not
func ValidateOpenAIAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable")
	}
	return nil
}

// SaveTranscript saves a transcript to the specified directory
func SaveTranscript(youtubeID, transcript, transcriptsDir string) error {
	if err := EnsureDirs(transcriptsDir); err != nil {
		return fmt.Errorf("creating transcripts directory: %w", err)
	}
	transcriptPath := filepath.Join(transcriptsDir, youtubeID+".txt")
	if err := os.WriteFile(transcriptPath, []byte(transcript), 0644); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	return nil
}
