package index

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/rtzll/insight/pkg/logx"
)

// TokenEncoding is the BPE vocabulary of the OpenAI embedding and chat models.
const TokenEncoding = "cl100k_base"

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// loadEncoding reads the vocabulary embedded in the loader module, so
// counting never touches the network. It returns nil if that fails.
func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.GetEncoding(TokenEncoding)
		if err != nil {
			logx.Warn().Err(err).Str("encoding", TokenEncoding).Msg("tokenizer unavailable, estimating token counts")
			return
		}
		encoding = enc
	})
	return encoding
}

// CountTokens returns the number of cl100k_base tokens in s. It falls back
// to EstimateTokens when the vocabulary cannot be loaded.
func CountTokens(s string) int {
	if s == "" {
		return 0
	}
	enc := loadEncoding()
	if enc == nil {
		return EstimateTokens(s)
	}
	return len(enc.Encode(s, nil, nil))
}
