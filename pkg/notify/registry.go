package notify

import (
	"sync"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// Registry maps channels to configured senders. Channel configuration is
// supplied externally and hot-swappable without restart; Set/Remove are
// atomic with respect to concurrent Get callers.
type Registry struct {
	mu      sync.RWMutex
	senders map[contracts.NotificationChannel]*Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[contracts.NotificationChannel]*Sender)}
}

// Set installs or replaces a channel's sender.
func (r *Registry) Set(channel contracts.NotificationChannel, s *Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = s
}

// Remove disables a channel.
func (r *Registry) Remove(channel contracts.NotificationChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.senders, channel)
}

// Get returns a channel's sender if it is configured and enabled.
func (r *Registry) Get(channel contracts.NotificationChannel) (*Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

// Enabled filters the wanted channels down to those with a configured
// sender, preserving order.
func (r *Registry) Enabled(channels []contracts.NotificationChannel) []*Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Sender, 0, len(channels))
	for _, c := range channels {
		if s, ok := r.senders[c]; ok {
			out = append(out, s)
		}
	}
	return out
}
