package transcript

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeThreads struct {
	n    int
	fail bool
}

func (f *fakeThreads) CreateThread(ctx context.Context) (string, error) {
	if f.fail {
		return "", errors.New("remote down")
	}
	f.n++
	return fmt.Sprintf("thread_%d", f.n), nil
}

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(&fakeThreads{}, zap.NewNop().Sugar())

	s, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "thread_1", s.ThreadID())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.Get("нет такой")
	assert.False(t, ok)
}

func TestManagerCreateFails(t *testing.T) {
	m := NewManager(&fakeThreads{fail: true}, zap.NewNop().Sugar())
	_, err := m.Create(context.Background())
	assert.Error(t, err)
}

func TestManagerReset(t *testing.T) {
	m := NewManager(&fakeThreads{}, zap.NewNop().Sugar())
	s, err := m.Create(context.Background())
	require.NoError(t, err)
	s.Append("user", "text", "до сброса")

	require.NoError(t, m.Reset(context.Background(), s))
	assert.Equal(t, "thread_2", s.ThreadID())
	assert.Zero(t, s.Transcript().Len())
}

func TestSessionSubscribeReceivesAppends(t *testing.T) {
	m := NewManager(&fakeThreads{}, zap.NewNop().Sugar())
	s, err := m.Create(context.Background())
	require.NoError(t, err)

	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.Append("assistant", "text", "ответ")
	select {
	case e := <-ch:
		assert.Equal(t, "ответ", e.Content)
	case <-time.After(time.Second):
		t.Fatal("подписчик не получил запись")
	}
}

func TestSessionUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(&fakeThreads{}, zap.NewNop().Sugar())
	s, err := m.Create(context.Background())
	require.NoError(t, err)

	ch := s.Subscribe()
	s.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
	// запись после отписки не должна паниковать
	s.Append("user", "text", "после отписки")
}

func TestSessionTurnSerialized(t *testing.T) {
	m := NewManager(&fakeThreads{}, zap.NewNop().Sugar())
	s, err := m.Create(context.Background())
	require.NoError(t, err)

	active := 0
	maxActive := 0
	done := make(chan struct{})
	for range 4 {
		go func() {
			s.Turn(func(string) {
				active++
				if active > maxActive {
					maxActive = active
				}
				time.Sleep(10 * time.Millisecond)
				active--
			})
			done <- struct{}{}
		}()
	}
	for range 4 {
		<-done
	}
	assert.Equal(t, 1, maxActive)
}
