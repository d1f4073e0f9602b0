package internal

import (
	"fmt"
	"strings"
)

// ContentType represents the type of YouTube content
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeVideo
	ContentTypePlaylist
	ContentTypeCommand
)

// String returns a human-readable representation of the content type
func (ct ContentType) String() string {
	switch ct {
	case ContentTypeVideo:
		return "video"
	case ContentTypePlaylist:
		return "playlist"
	case ContentTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ParsedArg represents the result of parsing a video locator
type ParsedArg struct {
	ContentType   ContentType
	OriginalInput string
	NormalizedURL string
	ID            string
	Error         error
}

// IsValid reports whether the argument names a single video.
func (p *ParsedArg) IsValid() bool {
	return p.Error == nil && p.ContentType == ContentTypeVideo
}

func (p *ParsedArg) String() string {
	if p.Error != nil {
		return fmt.Sprintf("ParsedArg{type=%s, input=%q, error=%v}", p.ContentType, p.OriginalInput, p.Error)
	}
	return fmt.Sprintf("ParsedArg{type=%s, id=%s, url=%s}", p.ContentType, p.ID, p.NormalizedURL)
}

// SuggestCorrection provides helpful suggestions for mistyped commands
func (p *ParsedArg) SuggestCorrection(availableCommands []string) string {
	if p.ContentType != ContentTypeCommand {
		return ""
	}

	input := strings.ToLower(p.OriginalInput)
	var suggestions []string
	for _, cmd := range availableCommands {
		if strings.Contains(cmd, input) || strings.Contains(input, cmd) {
			suggestions = append(suggestions, cmd)
		}
	}
	if len(suggestions) > 0 {
		return fmt.Sprintf("did you mean: %s", strings.Join(suggestions, ", "))
	}
	return "use --help to see available commands"
}

// ClassifyArg parses a URL or bare id into a ParsedArg.
func ClassifyArg(arg string) ParsedArg {
	arg = strings.TrimSpace(arg)
	p := ParsedArg{OriginalInput: arg}

	switch {
	case arg == "":
		p.Error = fmt.Errorf("empty video locator")
	case strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "http://"):
		id, err := getVideoID(arg)
		if err == nil && !IsValidYouTubeID(id) {
			err = fmt.Errorf("invalid video ID %q in %s", id, arg)
		}
		if err == nil {
			p.ContentType = ContentTypeVideo
			p.ID = id
			p.NormalizedURL = "https://www.youtube.com/watch?v=" + id
		} else if id, perr := getPlaylistID(arg); perr == nil {
			p.ContentType = ContentTypePlaylist
			p.ID = id
			p.NormalizedURL = "https://www.youtube.com/playlist?list=" + id
		} else {
			p.Error = err
		}
	case IsValidPlaylistID(arg):
		p.ContentType = ContentTypePlaylist
		p.ID = arg
		p.NormalizedURL = "https://www.youtube.com/playlist?list=" + arg
	case IsValidYouTubeID(arg):
		p.ContentType = ContentTypeVideo
		p.ID = arg
		p.NormalizedURL = "https://www.youtube.com/watch?v=" + arg
	case IsLikelyCommand(arg):
		p.ContentType = ContentTypeCommand
		p.Error = fmt.Errorf("%q doesn't look like a YouTube URL or video ID", arg)
	default:
		p.Error = fmt.Errorf("%q is not a YouTube video ID", arg)
	}
	return p
}
