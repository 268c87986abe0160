//go:build linux

package socket

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// hostBreakers keeps one gobreaker.CircuitBreaker per connect target, so a
// single unreachable host stops the reactor from burning a connect
// attempt (and a DNS lookup) on every retry without affecting connects to
// other hosts.
type hostBreakers struct {
	mu sync.Mutex
	m  map[string]*gobreaker.CircuitBreaker[struct{}]
}

func newHostBreakers() *hostBreakers {
	return &hostBreakers{m: make(map[string]*gobreaker.CircuitBreaker[struct{}])}
}

func (h *hostBreakers) get(host string) *gobreaker.CircuitBreaker[struct{}] {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.m[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "connect:" + host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	h.m[host] = b
	return b
}

// guardConnect runs attempt through host's breaker, tripping it after
// repeated connect failures to that host.
func (h *hostBreakers) guardConnect(host string, attempt func() error) error {
	_, err := h.get(host).Execute(func() (struct{}, error) {
		return struct{}{}, attempt()
	})
	return err
}
