package bridge

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Bus is an in-memory fan-out for push events. Subscriptions are explicit
// objects; a closed subscription stops receiving immediately.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for every subsequent event.
func (b *Bus) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return &Subscription{bus: b, id: id}
}

// Publish delivers ev to every live subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscription is a handle to one event registration.
type Subscription struct {
	bus  *Bus
	id   int
	once sync.Once
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.id)
	})
}

// EventStream consumes the host process's websocket push channel and fans
// events out to subscribers. It reconnects with backoff until closed.
type EventStream struct {
	wsURL  string
	secret string
	bus    *Bus
	log    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventStream creates an event stream for the given bridge base URL.
// Run must be called to start consuming.
func NewEventStream(baseURL, secret string, log *zap.Logger) (*EventStream, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/events"

	return &EventStream{
		wsURL:  u.String(),
		secret: secret,
		bus:    NewBus(),
		log:    log,
		done:   make(chan struct{}),
	}, nil
}

// Subscribe registers fn for every subsequent push event.
func (s *EventStream) Subscribe(fn func(Event)) *Subscription {
	return s.bus.Subscribe(fn)
}

// Run connects and consumes events until Close is called or ctx ends.
func (s *EventStream) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer close(s.done)

	backoff := time.Second
	for {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("event stream disconnected", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Close stops the stream and waits for the read loop to exit.
func (s *EventStream) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *EventStream) consume(ctx context.Context) error {
	header := http.Header{}
	if s.secret != "" {
		header.Set("Authorization", "Bearer "+s.secret)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the connection when the context ends so ReadJSON unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		s.bus.Publish(ev)
	}
}
