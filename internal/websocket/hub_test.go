// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/decoyshield/internal/detection"
	"github.com/tomtom215/decoyshield/internal/logging"
	"github.com/tomtom215/decoyshield/internal/metrics"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// createTestClient builds a connection-less client with the given queue size.
func createTestClient(hub *Hub, sessionID string, admin bool, queue int) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		sessionID: sessionID,
		username:  "user-" + sessionID,
		admin:     admin,
		hub:       hub,
		send:      make(chan Message, queue),
		ctx:       context.Background(),
	}
}

// drain discards queued messages, such as the session greeting.
func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// runHub starts the hub loop and stops it at test cleanup.
func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestNewHub(t *testing.T) {
	t.Parallel()

	hub := NewHub()

	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", hub.clients != nil},
		{"sessions map", hub.sessions != nil},
		{"broadcast channel", hub.broadcast != nil},
		{"Register channel", hub.Register != nil},
		{"Unregister channel", hub.Unregister != nil},
		{"empty clients", hub.GetClientCount() == 0},
		{"service name", hub.String() == "websocket-hub"},
	}

	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: check failed", c.name)
		}
	}
}

func TestHub_RegisterSendsSessionGreeting(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	client := createTestClient(hub, "sess-greet", false, 4)
	hub.register(client)

	if !hub.HasSession("sess-greet") {
		t.Fatal("session not indexed after register")
	}

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeSession {
			t.Fatalf("first message type = %q, want %q", msg.Type, MessageTypeSession)
		}
		data, ok := msg.Data.(SessionData)
		if !ok || data.SessionID != "sess-greet" || data.Username != "user-sess-greet" {
			t.Errorf("greeting data = %#v", msg.Data)
		}
	default:
		t.Fatal("no greeting queued")
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	client := createTestClient(hub, "sess-unreg", false, 4)
	hub.register(client)
	hub.unregister(client)
	hub.unregister(client)

	if hub.GetClientCount() != 0 || hub.HasSession("sess-unreg") {
		t.Error("client still registered")
	}
	drain(client)
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_ReplacesDuplicateSession(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	first := createTestClient(hub, "dup", false, 4)
	second := createTestClient(hub, "dup", false, 4)
	hub.register(first)
	hub.register(second)

	if hub.GetClientCount() != 1 {
		t.Errorf("client count = %d, want 1", hub.GetClientCount())
	}
	drain(first)
	if _, ok := <-first.send; ok {
		t.Error("replaced client should be closed")
	}

	// Unregistering the stale client must not drop the live one.
	hub.unregister(first)
	if !hub.HasSession("dup") {
		t.Error("live session lost")
	}
}

func TestHub_PushForceDecoy(t *testing.T) {
	hub := NewHub()
	client := createTestClient(hub, "sess-push", false, 2)
	hub.register(client)
	drain(client)

	delivered := metrics.ForceDecoyPushesTotal.WithLabelValues("delivered")
	dropped := metrics.ForceDecoyPushesTotal.WithLabelValues("dropped")
	beforeDelivered := testutil.ToFloat64(delivered)
	beforeDropped := testutil.ToFloat64(dropped)

	signal := detection.ForceDecoySignal{Reason: detection.ForceDecoyReasonAnomaly, Score: 0.99}

	if err := hub.PushForceDecoy("sess-push", signal); err != nil {
		t.Fatalf("PushForceDecoy() error = %v", err)
	}
	msg := <-client.send
	if msg.Type != MessageTypeForceDecoy {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypeForceDecoy)
	}
	if got, ok := msg.Data.(detection.ForceDecoySignal); !ok || got != signal {
		t.Errorf("data = %#v, want %#v", msg.Data, signal)
	}

	if err := hub.PushForceDecoy("missing", signal); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}

	// Fill the queue; the next push must fail fast instead of blocking.
	client.send <- Message{Type: MessageTypePong}
	client.send <- Message{Type: MessageTypePong}
	if err := hub.PushForceDecoy("sess-push", signal); !errors.Is(err, ErrSendQueueFull) {
		t.Errorf("full queue error = %v, want ErrSendQueueFull", err)
	}

	if got := testutil.ToFloat64(delivered); got != beforeDelivered+1 {
		t.Errorf("delivered = %v, want %v", got, beforeDelivered+1)
	}
	if got := testutil.ToFloat64(dropped); got != beforeDropped+2 {
		t.Errorf("dropped = %v, want %v", got, beforeDropped+2)
	}
}

func TestHub_ImplementsPusher(t *testing.T) {
	t.Parallel()

	var _ detection.Pusher = NewHub()
}

func TestHub_BroadcastAlertReachesAdminsOnly(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	admin := createTestClient(hub, "admin-1", true, 8)
	user := createTestClient(hub, "user-1", false, 8)
	hub.register(admin)
	hub.register(user)
	drain(admin)
	drain(user)
	runHub(t, hub)

	alert := &detection.Alert{
		ID:           5,
		Identity:     "finance_user",
		AnomalyScore: 0.99,
		SampleEvents: make([]detection.PointerEvent, 3),
		Status:       detection.StatusDetected,
	}
	hub.BroadcastAlert(context.Background(), alert)

	select {
	case msg := <-admin.send:
		if msg.Type != MessageTypeAlert {
			t.Fatalf("type = %q, want %q", msg.Type, MessageTypeAlert)
		}
		got, ok := msg.Data.(*detection.Alert)
		if !ok || got.ID != 5 {
			t.Fatalf("data = %#v", msg.Data)
		}
		if got.SampleEvents != nil {
			t.Error("broadcast alert should not carry the event sample")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("admin did not receive alert")
	}

	if len(alert.SampleEvents) != 3 {
		t.Error("BroadcastAlert must not modify the caller's alert")
	}

	select {
	case msg := <-user.send:
		t.Errorf("non-admin received %q", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastDropsFullAdmin(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	slow := createTestClient(hub, "slow-admin", true, 1)
	hub.register(slow)

	// The greeting fills the single slot.
	hub.broadcastToAdmins(Message{Type: MessageTypeAlert})

	if hub.GetClientCount() != 0 {
		t.Errorf("full admin should be disconnected, count = %d", hub.GetClientCount())
	}
}

func TestHub_RegisterChannel(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	runHub(t, hub)

	client := createTestClient(hub, "via-channel", false, 4)
	hub.Register <- client
	waitFor(t, func() bool { return hub.HasSession("via-channel") }, "registration")

	hub.Unregister <- client
	waitFor(t, func() bool { return !hub.HasSession("via-channel") }, "unregistration")
}

func TestHub_ConcurrentPushAndUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	runHub(t, hub)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		client := createTestClient(hub, "conc-"+string(rune('a'+i)), false, 4)
		hub.Register <- client

		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = hub.PushForceDecoy(client.sessionID, detection.ForceDecoySignal{Reason: "anomaly", Score: 0.99})
			}
		}()
		go func() {
			defer wg.Done()
			hub.Unregister <- client
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "all clients removed")
}

func TestHub_RunWithContext_ClosesClients(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ctx    func() (context.Context, context.CancelFunc)
		early  bool
		reason ShutdownReason
	}{
		{
			name:   "canceled",
			ctx:    func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			early:  true,
			reason: ShutdownReasonContextCanceled,
		},
		{
			name: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			reason: ShutdownReasonContextDeadline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hub := NewHub()
			client := createTestClient(hub, "shutdown-"+tt.name, false, 4)
			hub.register(client)
			drain(client)

			ctx, cancel := tt.ctx()
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- hub.Serve(ctx) }()
			if tt.early {
				cancel()
			}

			select {
			case err := <-done:
				if err == nil {
					t.Error("Serve should return the context error")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}

			if got := getShutdownReason(ctx); got != tt.reason {
				t.Errorf("reason = %q, want %q", got, tt.reason)
			}
			if hub.GetClientCount() != 0 {
				t.Error("clients should be closed on shutdown")
			}
			if _, ok := <-client.send; ok {
				t.Error("client channel should be closed")
			}
		})
	}
}

func TestGetShutdownReason(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{
		Type: MessageTypeForceDecoy,
		Data: detection.ForceDecoySignal{Reason: "anomaly", Score: 0.99},
	})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	want := `{"type":"force-decoy","data":{"reason":"anomaly","score":0.99}}`
	if string(data) != want {
		t.Errorf("MarshalMessage() = %s, want %s", data, want)
	}
}
