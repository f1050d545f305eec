package sender

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kursadbilgin/notification-fanout/internal/domain"
)

// Registry resolves a channel to its Sender. Build it once at startup and pass it
// to the dispatcher; adding a channel is one Register call.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

func (r *Registry) Register(channel domain.Channel, s Sender) error {
	if s == nil {
		return fmt.Errorf("sender for channel %q is nil", channel)
	}
	if channel == "" {
		return fmt.Errorf("%w: channel is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.senders[channel]; exists {
		return fmt.Errorf("%w: sender already registered for channel %q", domain.ErrConflict, channel)
	}
	r.senders[channel] = s
	return nil
}

// MustRegister is Register for wiring code that cannot continue on error.
func (r *Registry) MustRegister(channel domain.Channel, s Sender) {
	if err := r.Register(channel, s); err != nil {
		panic(err)
	}
}

// Resolve is a pure lookup.
func (r *Registry) Resolve(channel domain.Channel) (Sender, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedChannel, channel)
	}

	r.mu.RLock()
	s, ok := r.senders[channel]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedChannel, channel)
	}
	return s, nil
}

// Channels returns registered channels in a stable order.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]domain.Channel, 0, len(r.senders))
	for ch := range r.senders {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}
