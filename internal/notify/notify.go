// Package notify delivers push notifications about backups, restores and
// model loading to external services.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/kamiai/kamiai/internal/logger"
)

// DefaultTimeout bounds one provider send when none is configured.
const DefaultTimeout = 10 * time.Second

// Type is the severity of a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is one message for the configured services.
type Notification struct {
	Type    Type
	Title   string
	Message string
}

// Provider is an external delivery backend. Providers must be safe for
// concurrent use.
type Provider interface {
	Name() string
	SupportsType(t Type) bool
	Send(ctx context.Context, n *Notification) error
}

// Dispatcher fans notifications out to its providers in the background.
// A nil Dispatcher drops everything.
type Dispatcher struct {
	providers []Provider
	timeout   time.Duration
	log       logger.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher returns a dispatcher delivering to providers. A zero timeout
// uses DefaultTimeout.
func NewDispatcher(timeout time.Duration, providers ...Provider) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		providers: providers,
		timeout:   timeout,
		log:       GetLogger(),
	}
}

// Notify queues n for every provider accepting its type. It never blocks on
// delivery.
func (d *Dispatcher) Notify(n *Notification) {
	if d == nil || n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, p := range d.providers {
		if !p.SupportsType(n.Type) {
			continue
		}
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			d.send(p, n)
		}()
	}
}

func (d *Dispatcher) send(p Provider, n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := p.Send(ctx, n); err != nil {
		d.log.Warn("push send failed",
			logger.String("provider", p.Name()),
			logger.String("type", string(n.Type)),
			logger.Error(err))
		return
	}
	d.log.Debug("push sent",
		logger.String("provider", p.Name()),
		logger.String("title", n.Title))
}

// Close stops accepting notifications and waits for pending sends.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.inflight.Wait()
}
