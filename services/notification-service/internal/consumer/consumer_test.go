package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	done      chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (i *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seen[id] {
		return false, nil
	}
	i.seen[id] = true
	return true, nil
}

func (i *memInbox) Release(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, id)
	return nil
}

func msg(offset int64, eventID string) kafka.Message {
	return kafka.Message{
		Topic:   "booking.confirmed.v1",
		Offset:  offset,
		Headers: []kafka.Header{{Key: kafkax.HeaderEventID, Value: []byte(eventID)}},
	}
}

func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(finished)
	}()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-finished
}

func TestRun_DeduplicatesAndCommits(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "a"), msg(2, "a"), msg(3, "b")}, done: make(chan struct{})}
	var handled []string
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, r,
		func(_ context.Context, m kafka.Message) error {
			handled = append(handled, kafkax.ExtractEventMeta(m).EventID)
			return nil
		})

	runUntilDrained(t, c, r)

	if len(handled) != 2 || handled[0] != "a" || handled[1] != "b" {
		t.Fatalf("expected a then b, got %v", handled)
	}
	if len(r.committed) != 3 {
		t.Fatalf("expected every offset committed, got %v", r.committed)
	}
}

func TestRun_RetriesHandler(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "a")}, done: make(chan struct{})}
	calls := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, r,
		func(context.Context, kafka.Message) error {
			calls++
			if calls < 3 {
				return errors.New("db down")
			}
			return nil
		})
	c.retryDelay = time.Millisecond

	runUntilDrained(t, c, r)

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

// flakyInbox fails the first failures Record calls.
type flakyInbox struct {
	memInbox
	failures int
	attempts chan struct{}
}

func (i *flakyInbox) Record(ctx context.Context, id, typ string) (bool, error) {
	i.mu.Lock()
	fail := i.failures != 0
	if i.failures > 0 {
		i.failures--
	}
	i.mu.Unlock()
	if i.attempts != nil {
		select {
		case i.attempts <- struct{}{}:
		default:
		}
	}
	if fail {
		return false, errors.New("connection refused")
	}
	return i.memInbox.Record(ctx, id, typ)
}

func TestRun_RetriesInboxBeforeCommitting(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "a"), msg(2, "b")}, done: make(chan struct{})}
	var handled []string
	in := &flakyInbox{memInbox: memInbox{seen: map[string]bool{}}, failures: 2}
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), in, r,
		func(_ context.Context, m kafka.Message) error {
			handled = append(handled, kafkax.ExtractEventMeta(m).EventID)
			return nil
		})
	c.retryDelay = time.Millisecond

	runUntilDrained(t, c, r)

	if len(handled) != 2 || handled[0] != "a" {
		t.Fatalf("expected a then b, got %v", handled)
	}
	if len(r.committed) != 2 || r.committed[0] != 1 {
		t.Fatalf("unexpected commits %v", r.committed)
	}
}

func TestRun_InboxDownAtShutdownLeavesOffsetUncommitted(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{msg(1, "a")}, done: make(chan struct{})}
	in := &flakyInbox{memInbox: memInbox{seen: map[string]bool{}}, failures: -1, attempts: make(chan struct{}, 1)}
	handled := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), in, r,
		func(context.Context, kafka.Message) error {
			handled++
			return nil
		})
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(finished)
	}()
	for i := 0; i < 3; i++ {
		select {
		case <-in.attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("inbox was not retried")
		}
	}
	cancel()
	<-finished

	if handled != 0 || len(r.committed) != 0 {
		t.Fatalf("expected nothing handled or committed, got %d handled, commits %v", handled, r.committed)
	}
}
