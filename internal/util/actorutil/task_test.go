package actorutil

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type opened struct {
	port string
	err  error
}

func TestBackgroundTaskRun(t *testing.T) {

	assert := assert.New(t)

	value, ok := NewBackgroundTask[opened](nil, func() (*opened, error) {
		return &opened{port: "/dev/ttyUSB0"}, nil
	}).Run()
	assert.True(ok)
	assert.Equal("/dev/ttyUSB0", value.port)

	_, ok = NewBackgroundTask[opened](nil, func() (*opened, error) {
		return nil, errors.New("no such device")
	}).Run()
	assert.False(ok)

	_, ok = NewBackgroundTask[opened](nil, func() (*opened, error) {
		return nil, nil
	}).Run()
	assert.False(ok)
}

func TestBackgroundTaskRecover(t *testing.T) {

	assert := assert.New(t)

	value, ok := NewBackgroundTask[opened](nil, func() (*opened, error) {
		panic("boom")
	}).Recover(func(err error) opened {
		return opened{err: err}
	}).Run()
	assert.True(ok)
	assert.ErrorContains(value.err, "boom")
}

func TestBackgroundTaskTimeoutDiscardsLateResult(t *testing.T) {

	assert := assert.New(t)

	var discarded atomic.Bool
	value, ok := NewBackgroundTask[opened](nil, func() (*opened, error) {
		time.Sleep(200 * time.Millisecond)
		return &opened{port: "late"}, nil
	}).WithTimeout(20 * time.Millisecond).Recover(func(err error) opened {
		return opened{err: err}
	}).Discard(func(late opened) {
		discarded.Store(late.port == "late")
	}).Run()

	assert.True(ok)
	assert.ErrorIs(value.err, ErrTaskTimeout)
	assert.Eventually(discarded.Load, 2*time.Second, 10*time.Millisecond)
}

func TestBackgroundTaskPipeTo(t *testing.T) {

	assert := assert.New(t)

	system := NewActorSystemWithZapLogger(zap.NewNop())
	received := make(chan opened, 1)

	props := actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case *actor.Started:
			NewBackgroundTask(ctx, func() (*opened, error) {
				return &opened{port: "tcp"}, nil
			}).PipeTo(ctx.Self())
		case opened:
			received <- msg
		}
	})
	pid := system.Root.Spawn(props)
	defer system.Root.Stop(pid)

	select {
	case msg := <-received:
		assert.Equal("tcp", msg.port)
	case <-time.After(2 * time.Second):
		assert.Fail("piped result not received")
	}
}
