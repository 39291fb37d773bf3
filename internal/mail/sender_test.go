package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubChannel struct {
	name  string
	err   error
	calls int
}

func (s *stubChannel) Name() string {
	return s.name
}

func (s *stubChannel) Send(ctx context.Context, msg Message) (Result, error) {
	s.calls++
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Method: s.name, MessageID: "id-" + s.name}, nil
}

func testMessage() Message {
	return Message{
		To:      "taro@example.com",
		Subject: "test",
		Text:    "body",
	}
}

func TestFallbackSenderPrimarySuccess(t *testing.T) {
	primary := &stubChannel{name: MethodSMTP}
	secondary := &stubChannel{name: MethodRelay}
	sender := NewFallbackSender(primary, secondary)

	result, err := sender.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Method != MethodSMTP {
		t.Fatalf("expected method %q, got %q", MethodSMTP, result.Method)
	}
	if secondary.calls != 0 {
		t.Fatalf("expected fallback untouched, called %d times", secondary.calls)
	}
}

func TestFallbackSenderFallsBack(t *testing.T) {
	primary := &stubChannel{name: MethodSMTP, err: errors.New("connect timeout")}
	secondary := &stubChannel{name: MethodRelay}
	sender := NewFallbackSender(primary, secondary)

	result, err := sender.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.Method != MethodRelay {
		t.Fatalf("expected method %q, got %q", MethodRelay, result.Method)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("expected one call to each channel, got primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestFallbackSenderNoSecondary(t *testing.T) {
	primary := &stubChannel{name: MethodSMTP, err: errors.New("connect timeout")}
	sender := NewFallbackSender(primary, nil)

	_, err := sender.Send(context.Background(), testMessage())

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if len(sendErr.Attempts) != 1 {
		t.Fatalf("expected one attempt recorded, got %v", sendErr.Attempts)
	}
	if !strings.Contains(sendErr.Attempts[0], "connect timeout") {
		t.Fatalf("expected attempt to record the failure reason, got %q", sendErr.Attempts[0])
	}
}

func TestFallbackSenderBothFail(t *testing.T) {
	primary := &stubChannel{name: MethodSMTP, err: errors.New("smtp down")}
	secondary := &stubChannel{name: MethodRelay, err: errors.New("relay rejected")}
	sender := NewFallbackSender(primary, secondary)

	_, err := sender.Send(context.Background(), testMessage())

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if len(sendErr.Attempts) != 2 {
		t.Fatalf("expected two attempts recorded, got %v", sendErr.Attempts)
	}
	if !strings.Contains(err.Error(), "smtp down") || !strings.Contains(err.Error(), "relay rejected") {
		t.Fatalf("expected both failures in the error, got %q", err.Error())
	}
}
