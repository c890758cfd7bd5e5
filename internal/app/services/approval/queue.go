// Package approval parks confirmation requests until the embedding UI or an
// operator decides them. It is the default confirmation surface for the
// daemon; wallet frontends may substitute their own.
package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keeperstack/wallet_bridge/internal/app/sources"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

// Kind discriminates pending confirmations.
type Kind string

const (
	KindConnect Kind = "connect"
	KindSend    Kind = "send"
)

// Pending is one confirmation awaiting a decision.
type Pending struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	CreatedAt time.Time              `json:"created_at"`
	Connect   *sources.ConnectPrompt `json:"connect,omitempty"`
	Send      *sources.SendPrompt    `json:"send,omitempty"`
}

type item struct {
	pending Pending
	decide  chan bool
}

// Queue implements the confirmation surface by queueing prompts.
type Queue struct {
	mu      sync.Mutex
	pending map[string]*item
	log     *logger.Logger
}

var _ sources.ConfirmationSurface = (*Queue)(nil)

// NewQueue constructs an empty queue.
func NewQueue(log *logger.Logger) *Queue {
	if log == nil {
		log = logger.NewDefault("approval")
	}
	return &Queue{pending: make(map[string]*item), log: log}
}

// ConfirmConnect parks until the prompt is decided or ctx ends.
func (q *Queue) ConfirmConnect(ctx context.Context, prompt sources.ConnectPrompt) (bool, error) {
	p := prompt
	return q.wait(ctx, Pending{Kind: KindConnect, Connect: &p})
}

// ConfirmSend parks until the prompt is decided or ctx ends.
func (q *Queue) ConfirmSend(ctx context.Context, prompt sources.SendPrompt) (bool, error) {
	p := prompt
	return q.wait(ctx, Pending{Kind: KindSend, Send: &p})
}

func (q *Queue) wait(ctx context.Context, p Pending) (bool, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	it := &item{pending: p, decide: make(chan bool, 1)}

	q.mu.Lock()
	q.pending[p.ID] = it
	q.mu.Unlock()
	q.log.WithField("approval_id", p.ID).WithField("kind", string(p.Kind)).Info("confirmation pending")

	select {
	case approved := <-it.decide:
		return approved, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.pending, p.ID)
		q.mu.Unlock()
		return false, ctx.Err()
	}
}

// Pending lists undecided confirmations, oldest first.
func (q *Queue) Pending() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Pending, 0, len(q.pending))
	for _, it := range q.pending {
		out = append(out, it.pending)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Decide resolves a pending confirmation. Returns false when the ID is
// unknown or already decided.
func (q *Queue) Decide(id string, approved bool) bool {
	q.mu.Lock()
	it, ok := q.pending[id]
	if ok {
		delete(q.pending, id)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	it.decide <- approved
	return true
}
