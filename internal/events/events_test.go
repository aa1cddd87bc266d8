package events

import (
	"context"
	"errors"
	"testing"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, evt Event) error {
	r.got = append(r.got, evt)
	return r.err
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout{a, b}

	if err := f.Publish(context.Background(), Event{Type: AccountCreated, Kind: "vault"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Errorf("expected one event per publisher, got %d and %d", len(a.got), len(b.got))
	}
}

func TestFanout_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok, bad := &recorder{}, &recorder{err: boom}
	f := Fanout{bad, ok}

	err := f.Publish(context.Background(), Event{Type: AccountWritten})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error to wrap boom, got %v", err)
	}
	if len(ok.got) != 1 {
		t.Error("a failing publisher must not stop the others")
	}
}

func TestFanout_Empty(t *testing.T) {
	var f Fanout
	if err := f.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("empty fanout should drop events, got %v", err)
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(Event{Kind: "market"}); got != "limitless.accounts.market" {
		t.Errorf("unexpected subject %q", got)
	}
}
