package notify

import (
	"sync"

	"github.com/sermady/stockdata-core/internal/domain"
)

// subscriberBuffer bounds how many unconsumed notifications a single
// slow connection can accumulate before new ones are dropped for it;
// the durable copy in the store is unaffected.
const subscriberBuffer = 32

// hub fans out notifications to every live subscriber channel for a
// user. Multiple browser tabs/devices for the same user each get their
// own channel.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Notification]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan domain.Notification]struct{})}
}

func (h *hub) subscribe(userID string) (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan domain.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		close(ch)
	}
	return ch, unsubscribe
}

// broadcast delivers n to every live subscriber for n's user,
// dropping it for any subscriber whose buffer is currently full rather
// than blocking the publisher.
func (h *hub) broadcast(userID string, n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- n:
		default:
		}
	}
}
