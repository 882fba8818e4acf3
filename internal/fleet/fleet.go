// Package fleet broadcasts reconfigure/reopen notifications across a
// group of quasar masters running on separate hosts, e.g. a blue/green
// deploy pushing one config revision to every host's HUP at once rather
// than relying on an external orchestrator to SSH each one in turn.
// This is additive to the single-host master loop: a received
// notification simply sets the same signal.Flags a local HUP/USR1
// would, so the master's own state machine (internal/master) needs no
// awareness of where the trigger came from.
//
// Modeled on a Redis pub/sub fleet notifier
// (internal/queue/redis_notifier.go), adapted from its job-queue
// channel shape to a small fixed set of fleet-wide control messages.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/oriys/quasar/internal/logging"
	"github.com/oriys/quasar/internal/signal"
)

// Kind is the fleet-wide action a Notifier publishes or receives.
type Kind string

const (
	KindReconfigure Kind = "reconfigure"
	KindReopen      Kind = "reopen"
)

// Message is the payload published on Channel.
type Message struct {
	Kind        Kind   `json:"kind"`
	Origin      string `json:"origin"` // hostname that issued the broadcast
	Generation  string `json:"generation,omitempty"`
}

// Notifier publishes and subscribes to fleet-wide control messages over
// one Redis channel, following the "one logical channel,
// JSON-encoded payload" pub/sub convention.
type Notifier struct {
	client  *redis.Client
	channel string
	origin  string
}

// Options configures a Notifier's Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string // defaults to "quasar:fleet"
	Origin   string // defaults to the local hostname
}

// New constructs a Notifier. It does not connect eagerly; Publish and
// Subscribe each use the client's own lazy-dial behavior.
func New(opts Options) *Notifier {
	channel := opts.Channel
	if channel == "" {
		channel = "quasar:fleet"
	}
	origin := opts.Origin
	if origin == "" {
		origin, _ = os.Hostname()
	}
	return &Notifier{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		channel: channel,
		origin:  origin,
	}
}

// Publish broadcasts kind to every other host subscribed to the fleet
// channel.
func (n *Notifier) Publish(ctx context.Context, kind Kind, generation string) error {
	payload, err := json.Marshal(Message{Kind: kind, Origin: n.origin, Generation: generation})
	if err != nil {
		return fmt.Errorf("fleet: marshal message: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("fleet: publish: %w", err)
	}
	return nil
}

// Subscribe runs until ctx is cancelled, translating every received
// message not originated by this host into the matching local signal
// flag. It is meant to run in its own goroutine alongside the master
// loop.
func (n *Notifier) Subscribe(ctx context.Context, flags *signal.Flags) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.handle(msg.Payload, flags)
		}
	}
}

func (n *Notifier) handle(payload string, flags *signal.Flags) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		logging.Op().Warn("fleet: malformed message", "error", err)
		return
	}
	if m.Origin == n.origin {
		return
	}
	switch m.Kind {
	case KindReconfigure:
		flags.SetReconfigure()
	case KindReopen:
		flags.SetReopen()
	default:
		logging.Op().Warn("fleet: unknown message kind", "kind", m.Kind)
	}
}

// Close releases the underlying Redis client.
func (n *Notifier) Close() error {
	return n.client.Close()
}
