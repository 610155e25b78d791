package inference

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var setLoader sync.Once

// TokenCounter measures and trims prompt text in model tokens.
type TokenCounter interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that fits in limit tokens.
	Truncate(text string, limit int) string
}

// NewTokenCounter returns a BPE counter for encoding (e.g. "cl100k_base"). Encodings
// are read from the dictionaries embedded in the binary, never downloaded. When the
// encoding cannot be loaded it returns a whitespace counter together with the error.
func NewTokenCounter(encoding string) (TokenCounter, error) {
	setLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return WordCounter{}, fmt.Errorf("load token encoding %q: %w", encoding, err)
	}
	return &bpeCounter{enc: enc}, nil
}

type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (b *bpeCounter) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

func (b *bpeCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	tokens := b.enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return b.enc.Decode(tokens[:limit])
}

// WordCounter approximates tokens as whitespace separated words.
type WordCounter struct{}

// Count returns the number of words in text.
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// Truncate keeps the first limit words of text, preserving the original spacing.
func (WordCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	words := 0
	inWord := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			if words == limit {
				return strings.TrimRight(text[:i], " \n\t\r")
			}
			words++
		}
		inWord = !space
	}
	return text
}
