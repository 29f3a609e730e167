package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"twin-assistant-backend/internal/types"
)

// Transport sends a conversation to the agent and returns its reply.
type Transport interface {
	Send(ctx context.Context, history []types.Message) (string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, history []types.Message) (string, error)

func (f TransportFunc) Send(ctx context.Context, history []types.Message) (string, error) {
	return f(ctx, history)
}

// Listener is called after every applied event with the new revision and
// state. Listeners run on the dispatching goroutine and must not block.
type Listener func(rev uint64, s State)

// Controller owns one chat session. Dispatch is safe for concurrent use;
// transitions are applied one at a time.
type Controller struct {
	mu        sync.Mutex
	state     State
	rev       uint64
	closed    bool
	timers    map[Timer]struct{}
	listeners map[int]Listener
	nextID    int

	transport Transport
	scheduler Scheduler
	run       func(func())
	ctx       context.Context
	log       zerolog.Logger
}

type Option func(*Controller)

func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.scheduler = s } }

func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

// WithRunner replaces the goroutine used for transport calls; tests pass a
// synchronous runner.
func WithRunner(run func(func())) Option { return func(c *Controller) { c.run = run } }

// WithContext sets the parent context of transport calls.
func WithContext(ctx context.Context) Option { return func(c *Controller) { c.ctx = ctx } }

func NewController(t Transport, opts ...Option) *Controller {
	c := &Controller{
		state:     NewState(),
		timers:    make(map[Timer]struct{}),
		listeners: make(map[int]Listener),
		transport: t,
		scheduler: RealScheduler{},
		run:       func(f func()) { go f() },
		ctx:       context.Background(),
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state together with its revision.
func (c *Controller) Snapshot() (uint64, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev, c.state
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Dispatch applies ev and runs the resulting effects. It returns false when
// the event left the state unchanged or the controller is closed.
func (c *Controller) Dispatch(ev Event) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	next, effects := Update(c.state, ev)
	if sameState(c.state, next) && len(effects) == 0 {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.rev++
	rev := c.rev
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(rev, next)
	}
	for _, eff := range effects {
		c.execute(eff)
	}
	return true
}

// Close stops pending timers and ignores further events. An in-flight
// transport call still completes but its result is dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for t := range c.timers {
		t.Stop()
	}
	clear(c.timers)
}

func (c *Controller) execute(eff Effect) {
	switch eff := eff.(type) {
	case CallAgent:
		history := eff.History
		c.run(func() {
			reply, err := c.transport.Send(c.ctx, history)
			if err != nil {
				c.log.Warn().Err(err).Int("turns", len(history)).Msg("agent request failed")
				c.Dispatch(ReplyFailed{Err: err})
				return
			}
			c.Dispatch(ReplyArrived{Reply: reply})
		})
	case Schedule:
		c.schedule(eff)
	}
}

func (c *Controller) schedule(eff Schedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	var t Timer
	t = c.scheduler.AfterFunc(eff.After, func() {
		c.mu.Lock()
		delete(c.timers, t)
		c.mu.Unlock()
		c.Dispatch(eff.Event)
	})
	c.timers[t] = struct{}{}
}

func sameState(a, b State) bool {
	return a.PendingInput == b.PendingInput &&
		a.AwaitingReply == b.AwaitingReply &&
		a.Typing == b.Typing &&
		a.Expanded == b.Expanded &&
		len(a.Messages) == len(b.Messages)
}
