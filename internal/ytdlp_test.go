package internal

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseSRT(t *testing.T) {
	srt := "1\r\n00:00:00,000 --> 00:00:02,000\r\nHello and welcome\r\n\r\n" +
		"2\r\n00:00:02,000 --> 00:00:04,000\r\nto the talk\r\non attention\r\n\r\n" +
		"3\n00:00:04,000 --> 00:00:05,000\n\n"

	got := parseSRT(srt)
	want := []string{"Hello and welcome", "to the talk", "on attention"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseSRT = %q, want %q", got, want)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "rolling captions",
			in:   []string{"attention is", "attention is all", "attention is all", "you need", "you need", "thanks"},
			want: []string{"attention is all", "you need", "thanks"},
		},
		{
			name: "repeated tail",
			in:   []string{"so we stack layers", "stack layers", "of attention"},
			want: []string{"so we stack layers", "of attention"},
		},
		{
			name: "short reply after longer line",
			in:   []string{"yes, exactly", "yes"},
			want: []string{"yes, exactly", "yes"},
		},
		{
			name: "substring inside a word",
			in:   []string{"no", "nothing changed", "changed"},
			want: []string{"no", "nothing changed"},
		},
		{
			name: "answer contained in question",
			in:   []string{"is it fast", "it"},
			want: []string{"is it fast", "it"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := removeDuplicates(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeDuplicates(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestYouTubeLoadCached(t *testing.T) {
	dir := t.TempDir()
	if err := SaveTranscript(testVideoID, testTranscript, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, testVideoID+".txt")); err != nil {
		t.Fatalf("transcript not saved: %v", err)
	}

	yt := NewYouTube(t.TempDir(), dir)
	doc, err := yt.Load(context.Background(), testVideoURL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.VideoID != testVideoID || doc.URL != testVideoURL || doc.Text != testTranscript {
		t.Errorf("doc = %+v", doc)
	}

	if _, err := yt.Load(context.Background(), "https://example.com/video"); err == nil {
		t.Error("Load of a non YouTube URL: want error")
	}
}
