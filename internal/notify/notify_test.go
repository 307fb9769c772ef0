package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kamiai/kamiai/internal/errors"
)

type fakeProvider struct {
	name  string
	types map[Type]bool
	err   error
	delay time.Duration

	mu   sync.Mutex
	sent []Notification
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) SupportsType(t Type) bool { return f.types[t] }

func (f *fakeProvider) Send(ctx context.Context, n *Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *n)
	return f.err
}

func (f *fakeProvider) received() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.sent...)
}

func TestDispatcherRoutesByType(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	all := &fakeProvider{name: "all", types: map[Type]bool{TypeInfo: true, TypeError: true}}
	errorsOnly := &fakeProvider{name: "errors", types: map[Type]bool{TypeError: true}}
	d := NewDispatcher(time.Second, all, errorsOnly)

	d.Notify(&Notification{Type: TypeInfo, Title: "Backup complete", Message: "saved"})
	d.Notify(&Notification{Type: TypeError, Title: "Backup failed", Message: "disk full"})
	d.Close()

	assert.Len(t, all.received(), 2)
	got := errorsOnly.received()
	require.Len(t, got, 1)
	assert.Equal(t, "Backup failed", got[0].Title)
}

func TestDispatcherCloseWaitsAndDropsLate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	slow := &fakeProvider{name: "slow", types: map[Type]bool{TypeInfo: true}, delay: 20 * time.Millisecond}
	d := NewDispatcher(time.Second, slow)

	d.Notify(&Notification{Type: TypeInfo, Message: "first"})
	d.Close()
	require.Len(t, slow.received(), 1)

	d.Notify(&Notification{Type: TypeInfo, Message: "late"})
	assert.Len(t, slow.received(), 1)
}

func TestDispatcherSurvivesProviderFailure(t *testing.T) {
	failing := &fakeProvider{name: "down", types: map[Type]bool{TypeError: true}, err: errors.NewStd("unreachable")}
	d := NewDispatcher(0, failing)
	assert.Equal(t, DefaultTimeout, d.timeout)

	d.Notify(&Notification{Type: TypeError, Message: "x"})
	d.Close()
	assert.Len(t, failing.received(), 1)
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Notify(&Notification{Type: TypeInfo})
		d.Close()
	})
}

func TestShoutrrrProviderTypes(t *testing.T) {
	p := NewShoutrrrProvider("", []string{"telegram://token@telegram?chats=1"}, nil, 0)
	assert.Equal(t, "shoutrrr", p.Name())
	for _, ty := range []Type{TypeInfo, TypeWarning, TypeError} {
		assert.True(t, p.SupportsType(ty), ty)
	}

	p = NewShoutrrrProvider("ops", nil, []string{"error"}, 0)
	assert.True(t, p.SupportsType(TypeError))
	assert.False(t, p.SupportsType(TypeInfo))
}

func TestShoutrrrProviderValidate(t *testing.T) {
	p := NewShoutrrrProvider("ops", nil, nil, 0)
	err := p.ValidateConfig()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))

	p = NewShoutrrrProvider("ops", []string{"notaservice://secret-token@host"}, nil, 0)
	err = p.ValidateConfig()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestShoutrrrProviderSendRequiresSender(t *testing.T) {
	p := NewShoutrrrProvider("ops", []string{"telegram://token@telegram?chats=1"}, nil, 0)
	err := p.Send(context.Background(), &Notification{Type: TypeInfo, Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}
