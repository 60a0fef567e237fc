// Package tokens estimates LLM token usage for prompt and response text.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

var offlineOnce sync.Once

// Counter estimates the number of tokens a model spends on a text.
type Counter interface {
	Count(model, text string) (int, error)
}

type encoderLoader func(model string) (*tiktoken.Tiktoken, error)

type encoderEntry struct {
	enc *tiktoken.Tiktoken
	err error
}

// TiktokenCounter counts tokens with the BPE encoding of the named model.
// Encoders and load failures are cached per model.
type TiktokenCounter struct {
	mu      sync.Mutex
	entries map[string]encoderEntry
	load    encoderLoader
}

// NewTiktokenCounter builds a counter whose BPE ranks come from data embedded
// in the binary, so counting never touches the network.
func NewTiktokenCounter() *TiktokenCounter {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	return newCounter(loadEncoding)
}

func newCounter(load encoderLoader) *TiktokenCounter {
	return &TiktokenCounter{entries: make(map[string]encoderEntry), load: load}
}

// Count returns the token length of text under model's encoding, falling back
// to cl100k_base for unknown models.
func (c *TiktokenCounter) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	encoder, err := c.encoder(model)
	if err != nil {
		return 0, err
	}
	return len(encoder.Encode(text, nil, nil)), nil
}

func (c *TiktokenCounter) encoder(model string) (*tiktoken.Tiktoken, error) {
	key := strings.ToLower(strings.TrimSpace(model))

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		return entry.enc, entry.err
	}

	enc, err := c.load(key)
	if err != nil {
		err = fmt.Errorf("load tokenizer: %w", err)
	}
	c.entries[key] = encoderEntry{enc: enc, err: err}
	return enc, err
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding(fallbackEncoding)
}
