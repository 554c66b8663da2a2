// Package proxy rotates outbound HTTP proxies for provider clients.
package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNoProxiesAvailable = errors.New("no proxy URLs available")
var ErrAllProxiesExhausted = errors.New("all available proxies have been exhausted")

type Manager struct {
	proxies      []*url.URL
	currentIndex int
	mutex        sync.Mutex
}

func NewManager(proxyStrings []string) (*Manager, error) {
	var proxies []*url.URL
	for _, p := range proxyStrings {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		proxyURL, err := url.Parse(p)
		if err != nil || proxyURL.Host == "" {
			log.Warn().Str("proxy", p).Err(err).Msg("Could not parse proxy URL, skipping")
			continue
		}
		proxies = append(proxies, proxyURL)
	}

	if len(proxies) == 0 {
		return nil, ErrNoProxiesAvailable
	}
	return &Manager{proxies: proxies}, nil
}

func (pm *Manager) Current() *url.URL {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.proxies[pm.currentIndex]
}

// Rotate advances to the next proxy and returns ErrAllProxiesExhausted on wrap-around.
func (pm *Manager) Rotate() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	failed := pm.proxies[pm.currentIndex].Host
	pm.currentIndex++

	if pm.currentIndex >= len(pm.proxies) {
		pm.currentIndex = 0
		log.Warn().Str("failed", failed).Msg("All proxies have been tried, starting over")
		return ErrAllProxiesExhausted
	}

	log.Info().Str("failed", failed).Str("proxy", pm.proxies[pm.currentIndex].Host).Msg("Rotated proxy")
	return nil
}

func (pm *Manager) Len() int {
	return len(pm.proxies)
}

// Client returns an HTTP client whose requests go through whichever proxy is
// current at dial time.
func (pm *Manager) Client(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = func(*http.Request) (*url.URL, error) {
		return pm.Current(), nil
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
