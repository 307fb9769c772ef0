package serve

import (
	"bytes"
	"context"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

type countingRotator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRotator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRotateOnHangup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf, logger.LogLevelInfo).Module("main")
	r := &countingRotator{}
	hup := make(chan os.Signal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rotateOnHangup(ctx, hup, r, log)
		close(done)
	}()

	hup <- syscall.SIGHUP
	hup <- syscall.SIGHUP
	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Contains(t, buf.String(), "log file rotated")
}

func TestRotateOnHangupKeepsRunningAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf, logger.LogLevelInfo).Module("main")
	r := &countingRotator{err: errors.NewStd("disk full")}
	hup := make(chan os.Signal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rotateOnHangup(ctx, hup, r, log)
		close(done)
	}()

	hup <- syscall.SIGHUP
	hup <- syscall.SIGHUP
	cancel()
	<-done

	assert.Equal(t, 2, r.count())
	assert.Contains(t, buf.String(), "log rotation failed")
}
