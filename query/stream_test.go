package query

import (
	"context"
	"errors"
	"testing"
)

func TestStreamDeliversInOrder(t *testing.T) {
	s := NewStream[int]()
	go func() {
		for i := 1; i <= 3; i++ {
			if err := s.Send(context.Background(), i); err != nil {
				t.Errorf("Send(%d): %v", i, err)
				return
			}
		}
		s.Close()
	}()

	var got []int
	if err := s.Drain(context.Background(), func(v int) error {
		got = append(got, v)
		return nil
	}); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", got)
	}
}

func TestStreamSendAfterCloseFails(t *testing.T) {
	s := NewStream[int]()
	s.Close()
	if err := s.Send(context.Background(), 1); !errors.Is(err, ErrStreamTerminated) {
		t.Fatalf("Send after Close: got %v, want ErrStreamTerminated", err)
	}
}

func TestStreamSingleTerminalSignal(t *testing.T) {
	s := NewStream[int]()
	failure := errors.New("driver broke")
	s.Fail(failure)
	s.Close() // must not overwrite the error terminal
	s.Fail(errors.New("second failure"))

	if err := s.Err(); !errors.Is(err, failure) {
		t.Fatalf("Err() = %v, want first failure", err)
	}
	if err := s.Drain(context.Background(), nil); !errors.Is(err, failure) {
		t.Fatalf("Drain = %v, want first failure", err)
	}
}

func TestStreamConsumerFailureStopsProducer(t *testing.T) {
	s := NewStream[int]()
	boom := errors.New("consumer boom")

	sendErrs := make(chan error, 1)
	go func() {
		for i := 1; ; i++ {
			if err := s.Send(context.Background(), i); err != nil {
				sendErrs <- err
				return
			}
		}
	}()

	seen := 0
	err := s.Drain(context.Background(), func(v int) error {
		seen++
		if v == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Drain = %v, want consumer error", err)
	}
	if seen != 2 {
		t.Fatalf("consumer saw %d items, want 2", seen)
	}
	if err := <-sendErrs; !errors.Is(err, boom) {
		t.Fatalf("producer Send unblocked with %v, want consumer error", err)
	}
}

func TestStreamDrainHonorsContext(t *testing.T) {
	s := NewStream[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Drain(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Drain = %v, want context.Canceled", err)
	}
}
