package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"

	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/pkg/logx"
)

// ErrNoCaptions means the video has neither manual nor automatic captions.
var ErrNoCaptions = errors.New("no captions available")

// TranscriptLoader fetches the transcript of a single video.
type TranscriptLoader interface {
	Load(ctx context.Context, videoURL string) (model.TranscriptDocument, error)
}

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	Title       string  `json:"title"`
	Channel     string  `json:"channel"`
	Duration    float64 `json:"duration"`
	HasCaptions bool    `json:"-"`
}

// YouTube fetches captions with yt-dlp and keeps flattened transcripts on disk.
type YouTube struct {
	cacheDir       string
	transcriptsDir string

	installOnce sync.Once
	installErr  error
}

var _ TranscriptLoader = (*YouTube)(nil)

// NewYouTube creates a loader writing raw subtitles to cacheDir and
// plain transcripts to transcriptsDir.
func NewYouTube(cacheDir, transcriptsDir string) *YouTube {
	return &YouTube{cacheDir: cacheDir, transcriptsDir: transcriptsDir}
}

// ensureInstalled resolves or downloads the yt-dlp binary once per process.
func (yt *YouTube) ensureInstalled(ctx context.Context) error {
	yt.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			yt.installErr = fmt.Errorf("installing yt-dlp: %w", err)
		}
	})
	return yt.installErr
}

// Metadata fetches video details using go-ytdlp
func (yt *YouTube) Metadata(ctx context.Context, youtubeURL string) (*VideoMetadata, error) {
	if err := yt.ensureInstalled(ctx); err != nil {
		return nil, err
	}

	dl := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if result != nil {
			logx.Debug().Str("stderr", result.Stderr).Msg("metadata extraction failed")
		}
		return nil, fmt.Errorf("extracting video metadata: %w", err)
	}

	var raw struct {
		VideoMetadata
		Subtitles         map[string]any `json:"subtitles"`
		AutomaticCaptions map[string]any `json:"automatic_captions"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &raw); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	metadata := raw.VideoMetadata
	metadata.HasCaptions = len(raw.Subtitles) > 0 || len(raw.AutomaticCaptions) > 0
	logx.Debug().
		Str("title", metadata.Title).
		Str("channel", metadata.Channel).
		Float64("duration", metadata.Duration).
		Bool("has_captions", metadata.HasCaptions).
		Msg("fetched video metadata")
	return &metadata, nil
}

// Load returns the transcript for videoURL, from the transcripts directory
// when it was fetched before.
func (yt *YouTube) Load(ctx context.Context, videoURL string) (model.TranscriptDocument, error) {
	videoID, err := getVideoID(videoURL)
	if err != nil {
		return model.TranscriptDocument{}, fmt.Errorf("extracting video ID: %w", err)
	}
	doc := model.TranscriptDocument{VideoID: videoID, URL: videoURL}

	cached := filepath.Join(yt.transcriptsDir, videoID+".txt")
	if FileExists(cached) {
		text, err := os.ReadFile(cached)
		if err != nil {
			return doc, fmt.Errorf("reading cached transcript: %w", err)
		}
		logx.Debug().Str("video_id", videoID).Msg("using cached transcript")
		doc.Text = string(text)
		return doc, nil
	}

	metadata, err := yt.Metadata(ctx, videoURL)
	if err != nil {
		return doc, err
	}
	if !metadata.HasCaptions {
		return doc, fmt.Errorf("%w for %s", ErrNoCaptions, videoID)
	}
	doc.Title = metadata.Title

	srtPath, err := yt.downloadSubtitles(ctx, videoURL, videoID)
	if err != nil {
		return doc, err
	}
	text, err := yt.processSrtTranscript(srtPath)
	if err != nil {
		return doc, err
	}

	if err := SaveTranscript(videoID, text, yt.transcriptsDir); err != nil {
		logx.Warn().Err(err).Str("video_id", videoID).Msg("could not cache transcript")
	}
	doc.Text = text
	return doc, nil
}

// downloadSubtitles fetches English captions as SRT into the cache directory.
func (yt *YouTube) downloadSubtitles(ctx context.Context, youtubeURL, videoID string) (string, error) {
	if err := EnsureDirs(yt.cacheDir); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	dl := ytdlp.New().
		WriteSubs().
		WriteAutoSubs().
		SubLangs("en").
		ConvertSubs("srt").
		SkipDownload().
		NoPlaylist().
		Output(filepath.Join(yt.cacheDir, "%(id)s"))

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if result != nil {
			logx.Debug().Str("stderr", result.Stderr).Msg("subtitle download failed")
		}
		return "", fmt.Errorf("downloading subtitles: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(yt.cacheDir, videoID+"*.srt"))
	if err != nil || len(files) == 0 {
		return "", fmt.Errorf("%w: no subtitle files found after download", ErrNoCaptions)
	}
	// manual captions sort before the auto generated variants
	return files[0], nil
}

// processSrtTranscript converts SRT to clean plain text and removes the
// downloaded file.
func (yt *YouTube) processSrtTranscript(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading SRT file: %w", err)
	}

	text := strings.TrimSpace(strings.Join(removeDuplicates(parseSRT(string(content))), "\n"))

	if err := os.Remove(filePath); err != nil {
		logx.Warn().Err(err).Str("path", filePath).Msg("failed to remove SRT file from cache")
	}
	return text, nil
}

// parseSRT extracts text content from SRT format
func parseSRT(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var lines []string
	for block := range strings.SplitSeq(content, "\n\n") {
		blockLines := strings.Split(strings.TrimSpace(block), "\n")
		if len(blockLines) < 3 {
			continue
		}
		// skip sequence number and timestamp
		for _, line := range blockLines[2:] {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

// removeDuplicates collapses the rolling overlaps of auto captions: a
// repeated line, a line extending the previous one, and a line repeating
// the previous one's tail. Overlaps count only on word boundaries.
func removeDuplicates(lines []string) []string {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if n := len(result); n > 0 {
			prev := result[n-1]
			switch {
			case line == prev, strings.HasSuffix(prev, " "+line):
				continue
			case strings.HasPrefix(line, prev+" "):
				result[n-1] = line
				continue
			}
		}
		result = append(result, line)
	}
	return result
}
