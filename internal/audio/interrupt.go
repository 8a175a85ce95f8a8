package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
)

const (
	DefaultInterruptTimeout = 500 * time.Millisecond

	pendingInterrupts = 16
	recentResolutions = 256
)

const (
	reqPending int32 = iota
	reqClaimed
	reqAbandoned
)

type interruptRequest struct {
	id    domain.RequestID
	state atomic.Int32
	done  chan domain.Resolution
	// waiters is guarded by Coordinator.mu.
	waiters int
}

// Coordinator hands interrupt requests from the network domain to the audio
// callback and publishes each resolution exactly once, keyed by request id.
// Requests are resolved only inside Service, which the mixer calls at the
// start of every callback.
type Coordinator struct {
	requests chan *interruptRequest
	timeout  time.Duration
	stopped  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	inflight map[domain.RequestID]*interruptRequest
	results  map[domain.RequestID]domain.Resolution
	order    []domain.RequestID
}

func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultInterruptTimeout
	}
	return &Coordinator{
		requests: make(chan *interruptRequest, pendingInterrupts),
		timeout:  timeout,
		stopped:  make(chan struct{}),
		inflight: make(map[domain.RequestID]*interruptRequest),
		results:  make(map[domain.RequestID]domain.Resolution),
	}
}

// Interrupt issues a request with a fresh id and waits for its resolution.
func (c *Coordinator) Interrupt(ctx context.Context) (domain.Resolution, error) {
	return c.InterruptWithID(ctx, domain.NewRequestID())
}

// InterruptWithID waits for the resolution of request id. A repeated id
// returns the already published resolution without resolving again.
func (c *Coordinator) InterruptWithID(ctx context.Context, id domain.RequestID) (domain.Resolution, error) {
	select {
	case <-c.stopped:
		return domain.Resolution{}, ErrEngineStopped
	default:
	}

	c.mu.Lock()
	if res, ok := c.results[id]; ok {
		c.mu.Unlock()
		return res, nil
	}
	req, ok := c.inflight[id]
	if !ok {
		req = &interruptRequest{id: id, done: make(chan domain.Resolution, 1)}
		select {
		case c.requests <- req:
			c.inflight[id] = req
		default:
			c.mu.Unlock()
			return domain.Resolution{}, ErrInterruptBusy
		}
	}
	req.waiters++
	c.mu.Unlock()

	return c.wait(ctx, req)
}

func (c *Coordinator) wait(ctx context.Context, req *interruptRequest) (domain.Resolution, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var err error
	select {
	case res := <-req.done:
		req.done <- res
		return res, nil
	case <-timer.C:
		err = ErrInterruptTimeout
	case <-ctx.Done():
		err = ctx.Err()
	case <-c.stopped:
		err = ErrEngineStopped
	}

	// Only the last waiter may abandon a request; earlier ones leave it
	// queued for the others.
	c.mu.Lock()
	req.waiters--
	abandon := req.waiters == 0 && req.state.CompareAndSwap(reqPending, reqAbandoned)
	if abandon && c.inflight[req.id] == req {
		delete(c.inflight, req.id)
	}
	c.mu.Unlock()
	if abandon || req.state.Load() != reqClaimed {
		return domain.Resolution{}, err
	}
	// The audio callback already claimed the request; its result follows.
	res := <-req.done
	req.done <- res
	return res, nil
}

// Service resolves every queued request with resolve. It never blocks and
// is meant to run on the audio callback.
func (c *Coordinator) Service(resolve func(domain.RequestID) domain.Resolution) int {
	n := 0
	for {
		select {
		case req := <-c.requests:
			if !req.state.CompareAndSwap(reqPending, reqClaimed) {
				continue
			}
			res := resolve(req.id)
			res.RequestID = req.id
			c.publish(req, res)
			n++
		default:
			return n
		}
	}
}

func (c *Coordinator) publish(req *interruptRequest, res domain.Resolution) {
	c.mu.Lock()
	delete(c.inflight, req.id)
	c.results[req.id] = res
	c.order = append(c.order, req.id)
	if len(c.order) > recentResolutions {
		delete(c.results, c.order[0])
		c.order = c.order[1:]
	}
	c.mu.Unlock()
	req.done <- res
}

// Resolution returns the published resolution for id, if any.
func (c *Coordinator) Resolution(id domain.RequestID) (domain.Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[id]
	return res, ok
}

// Stop fails every waiting and future request with ErrEngineStopped.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}
