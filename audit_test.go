package authkit

import (
	"context"
	"testing"
	"time"
)

func collectAudit(t *testing.T, sink *ChannelSink, action string) AuditEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Action == action {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q audit event arrived", action)
		}
	}
}

func TestAuditSignInEvents(t *testing.T) {
	sink := NewChannelSink(64)
	svc, _ := newTestService(t, nil, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	ctx = WithUserAgent(ctx, "authkit-test/1.0")

	result, err := svc.SignIn(ctx, Credentials{Email: "admin@demo-org.test", Password: "AdminDemo1!"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	event := collectAudit(t, sink, "auth.sign_in.success")
	if !event.Success {
		t.Fatal("expected success event")
	}
	if event.UserID != result.User.ID {
		t.Fatalf("UserID = %q, want %q", event.UserID, result.User.ID)
	}
	if event.SessionID == "" {
		t.Fatal("expected session id on sign-in event")
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Fatalf("event not fully populated: %+v", event)
	}
	if event.Metadata["client_ip"] != "203.0.113.7" {
		t.Fatalf("client_ip = %q", event.Metadata["client_ip"])
	}
	if event.Metadata["user_agent"] != "authkit-test/1.0" {
		t.Fatalf("user_agent = %q", event.Metadata["user_agent"])
	}
}

func TestAuditFailureCarriesReason(t *testing.T) {
	sink := NewChannelSink(64)
	svc, _ := newTestService(t, nil, func(b *Builder) {
		b.WithAuditSink(sink)
	})

	_, err := svc.SignIn(context.Background(), Credentials{Email: "admin@demo-org.test", Password: "wrong"})
	if err == nil {
		t.Fatal("expected failure")
	}

	event := collectAudit(t, sink, "auth.sign_in.failure")
	if event.Success {
		t.Fatal("expected failure event")
	}
	if event.Error == "" {
		t.Fatal("expected error detail on failure event")
	}
	if event.Metadata["reason"] != "password_mismatch" {
		t.Fatalf("reason = %q", event.Metadata["reason"])
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(4)
	svc, _ := newTestService(t, nil, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	mustSignIn(t, svc, "admin@demo-org.test", "AdminDemo1!")

	select {
	case event := <-sink.Events():
		t.Fatalf("unexpected audit event %q", event.Action)
	case <-time.After(50 * time.Millisecond):
	}
	if svc.AuditDropped() != 0 {
		t.Fatalf("dropped = %d", svc.AuditDropped())
	}
}
