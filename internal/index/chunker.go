package index

import (
	"strings"
)

// ChunkOptions controls how a transcript is split before embedding.
type ChunkOptions struct {
	// Size is the token budget of one chunk.
	Size int
	// Overlap is the number of tokens repeated at the start of the next chunk.
	Overlap int
	// Tokens counts the tokens of a text. Nil means CountTokens.
	Tokens func(string) int
}

// wordTokens counts w as it appears in running text, after a space.
func (o ChunkOptions) wordTokens(w string) int {
	count := o.Tokens
	if count == nil {
		count = CountTokens
	}
	return max(count(" "+w), 1)
}

// DefaultChunkOptions mirrors the usual 1024/20 sentence splitter defaults.
var DefaultChunkOptions = ChunkOptions{Size: 1024, Overlap: 20}

// EstimateTokens approximates the BPE token count of s at roughly four
// characters per token, counting every word as at least one token.
func EstimateTokens(s string) int {
	n := 0
	for _, w := range strings.Fields(s) {
		n += max((len([]rune(w))+3)/4, 1)
	}
	return n
}

// Split cuts text into word-aligned chunks that stay within opts.Size
// tokens as counted by opts.Tokens. A single word larger than the budget becomes its own chunk.
func Split(text string, opts ChunkOptions) []string {
	if opts.Size <= 0 {
		opts.Size, opts.Overlap = DefaultChunkOptions.Size, DefaultChunkOptions.Overlap
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.Size {
		opts.Overlap = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start
		tokens := 0
		for end < len(words) {
			t := opts.wordTokens(words[end])
			if tokens+t > opts.Size && end > start {
				break
			}
			tokens += t
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		// walk back to cover the overlap, always making progress
		next := end
		carried := 0
		for next > start+1 {
			t := opts.wordTokens(words[next-1])
			if carried+t > opts.Overlap {
				break
			}
			carried += t
			next--
		}
		start = next
	}
	return chunks
}
