package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 8),
		outbound: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-f.inbound:
		return websocket.TextMessage, raw, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case f.outbound <- data:
		return nil
	case <-f.closed:
		return errors.New("connection closed")
	}
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64)               {}
func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type stubLookups struct {
	role     string
	required map[string]bool
	err      error
}

func (s stubLookups) RoleForConnectionKey(context.Context, string) (string, error) {
	return s.role, s.err
}

func (s stubLookups) IsRequired(_ context.Context, key string, hasPrefix bool) (bool, error) {
	if !hasPrefix {
		return false, errors.New("expected a connection key")
	}
	return s.required[key], s.err
}

func (f *fakeConn) next(t *testing.T) (Event, map[string]any) {
	t.Helper()
	select {
	case raw := <-f.outbound:
		return decodeFrame(t, raw)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return "", nil
	}
}

func serve(t *testing.T, g *Greeter, conn *fakeConn) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Serve(context.Background(), conn)
	}()
	return done
}

func TestGreeter_WelcomeThenLoginRequired(t *testing.T) {
	t.Parallel()
	hub := NewHub(zaptest.NewLogger(t))
	lookups := stubLookups{role: "admin", required: map[string]bool{"abc_u@example.com": true}}
	g := NewGreeter(hub, lookups, lookups, zaptest.NewLogger(t))
	g.now = func() time.Time { return time.UnixMilli(42) }

	conn := newFakeConn()
	done := serve(t, g, conn)

	conn.inbound <- []byte(`{"event":"message","data":{"email":"abc_u@example.com"}}`)

	event, data := conn.next(t)
	assert.Equal(t, EventMessage, event)
	assert.Equal(t, "Welcome abc_u@example.com to __ocxers__...42", data["message"])
	assert.Equal(t, "admin", data["role"])
	assert.Equal(t, "system", data["type"])

	event, data = conn.next(t)
	assert.Equal(t, EventMessage, event)
	assert.Equal(t, "LOGIN_REQUIRED", data["message"])

	assert.Equal(t, 1, hub.PushLoginRequired("u@example.com"))
	_, data = conn.next(t)
	assert.Equal(t, "LOGIN_REQUIRED", data["message"])

	require.NoError(t, conn.Close())
	<-done
	assert.Zero(t, hub.Len())
}

// pushingLogins marks the account as invalidated while Identify is running,
// the way a concurrent role change would.
type pushingLogins struct {
	hub   *Hub
	email string
}

func (p pushingLogins) IsRequired(context.Context, string, bool) (bool, error) {
	p.hub.PushLoginRequired(p.email)
	return true, nil
}

func TestGreeter_ConcurrentInvalidationAfterWelcome(t *testing.T) {
	t.Parallel()
	hub := NewHub(zaptest.NewLogger(t))
	g := NewGreeter(hub, stubLookups{role: "user"}, pushingLogins{hub: hub, email: "u@example.com"}, zaptest.NewLogger(t))

	c := hub.NewClient()
	g.Identify(context.Background(), c, "k1_u@example.com")

	var messages []string
	for i := 0; i < 3; i++ {
		select {
		case raw := <-c.Outbound():
			_, data := decodeFrame(t, raw)
			messages = append(messages, data["message"].(string))
		default:
			t.Fatalf("frame %d missing", i)
		}
	}
	require.Len(t, messages, 3)
	assert.Contains(t, messages[0], "Welcome k1_u@example.com")
	assert.Equal(t, []string{"LOGIN_REQUIRED", "LOGIN_REQUIRED"}, messages[1:])
	hub.Unregister(c)
}

func TestGreeter_WelcomeOnly(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	lookups := stubLookups{role: "user"}
	g := NewGreeter(hub, lookups, lookups, nil)

	conn := newFakeConn()
	done := serve(t, g, conn)

	conn.inbound <- []byte(`not json`)
	conn.inbound <- []byte(`{"event":"notification","data":{"email":"x_u@example.com"}}`)
	conn.inbound <- []byte(`{"event":"message","data":{"email":"abc_u@example.com"}}`)

	_, data := conn.next(t)
	assert.Equal(t, "user", data["role"])

	select {
	case raw := <-conn.outbound:
		t.Fatalf("unexpected frame %s", raw)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, conn.Close())
	<-done
}

func TestGreeter_LookupFailureStillWelcomes(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	lookups := stubLookups{err: errors.New("store down")}
	g := NewGreeter(hub, lookups, lookups, zaptest.NewLogger(t))

	c := hub.NewClient()
	g.Identify(context.Background(), c, "abc_u@example.com")

	event, data := decodeFrame(t, <-c.Outbound())
	assert.Equal(t, EventMessage, event)
	assert.NotContains(t, data, "role")
	assert.Zero(t, drain(c))
	hub.Unregister(c)
}

func TestGreeter_HubCloseEndsSession(t *testing.T) {
	t.Parallel()
	hub := NewHub(nil)
	lookups := stubLookups{}
	g := NewGreeter(hub, lookups, lookups, nil)

	conn := newFakeConn()
	done := serve(t, g, conn)
	conn.inbound <- []byte(`{"event":"message","data":{"email":"abc_u@example.com"}}`)
	conn.next(t)

	hub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after hub close")
	}
}
