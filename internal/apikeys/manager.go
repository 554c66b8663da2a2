// Package apikeys rotates through a pool of API keys when a provider rejects one.
package apikeys

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoKeysAvailable = errors.New("no API keys available")
var ErrAllKeysExhausted = errors.New("all available API keys have been exhausted")

// KeyManager hands out the current key of a named provider and advances on failure.
type KeyManager struct {
	provider     string
	keys         []string
	currentIndex int
	mutex        sync.Mutex
}

// NewManager creates a KeyManager. Blank entries are dropped.
func NewManager(provider string, keys []string) (*KeyManager, error) {
	var clean []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoKeysAvailable
	}
	return &KeyManager{provider: provider, keys: clean}, nil
}

// Current returns the active key.
func (km *KeyManager) Current() string {
	km.mutex.Lock()
	defer km.mutex.Unlock()
	return km.keys[km.currentIndex]
}

// Rotate moves to the next key. It returns ErrAllKeysExhausted after wrapping
// around to the first key again.
func (km *KeyManager) Rotate() error {
	km.mutex.Lock()
	defer km.mutex.Unlock()

	failed := km.currentIndex + 1
	km.currentIndex++

	if km.currentIndex >= len(km.keys) {
		km.currentIndex = 0
		log.Warn().Str("provider", km.provider).Int("keys", len(km.keys)).Msg("All API keys have been tried and failed")
		return ErrAllKeysExhausted
	}

	log.Info().Str("provider", km.provider).Int("failed_key", failed).Int("key", km.currentIndex+1).Msg("Rotated API key")
	return nil
}

// Len is the number of keys, which bounds how many attempts a caller makes.
func (km *KeyManager) Len() int {
	return len(km.keys)
}
