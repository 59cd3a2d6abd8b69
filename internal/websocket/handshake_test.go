package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/mclemens/timekeep/internal/auth"
	"github.com/mclemens/timekeep/internal/database"
	"github.com/mclemens/timekeep/internal/store"
)

type wsFixture struct {
	hub    *Hub
	disp   *Dispatcher
	users  *store.UserStore
	sess   *store.SessionStore
	timers *store.TimerStore
	url    string
}

func setupWS(t *testing.T) *wsFixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	timers := store.NewTimerStore(db)
	resolver := auth.NewResolver(sessions, users)

	hub := NewHub(slog.Default())
	disp := NewDispatcher(hub, timers, slog.Default())

	srv := httptest.NewServer(Handle(hub, resolver, disp, slog.Default()))
	t.Cleanup(srv.Close)

	return &wsFixture{
		hub:    hub,
		disp:   disp,
		users:  users,
		sess:   sessions,
		timers: timers,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func dial(t *testing.T, ctx context.Context, url string) *ws.Conn {
	t.Helper()
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(ws.StatusNormalClosure, "") })
	return conn
}

func sendJSON(t *testing.T, ctx context.Context, conn *ws.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, ws.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readSnapshot(t *testing.T, ctx context.Context, conn *ws.Conn) (Snapshot, []byte) {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return snap, data
}

func waitForClients(t *testing.T, hub *Hub, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCountFor(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count for %s never reached %d", userID, want)
}

func TestHandshakeAuthReceivesSnapshot(t *testing.T) {
	f := setupWS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _ := f.users.Create("alice", "h")
	sess, _ := f.sess.Create(u.ID)
	f.timers.Start(u.ID, "draft proposal")

	conn := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn, map[string]string{"type": "auth", "sessionId": sess.Token})

	snap, _ := readSnapshot(t, ctx, conn)
	if snap.Type != TypeAllTimers {
		t.Errorf("type = %q, want %q", snap.Type, TypeAllTimers)
	}
	if len(snap.Timers) != 1 {
		t.Fatalf("expected 1 timer, got %d", len(snap.Timers))
	}
	if snap.Timers[0].Description != "draft proposal" {
		t.Errorf("description = %q, want %q", snap.Timers[0].Description, "draft proposal")
	}
	if snap.Timers[0].Progress == nil {
		t.Error("active timer in snapshot should carry progress")
	}

	if got := f.hub.ClientCountFor(u.ID); got != 1 {
		t.Errorf("client count = %d, want 1", got)
	}
}

func TestHandshakeInvalidTokenClosesChannel(t *testing.T) {
	f := setupWS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn, map[string]string{"type": "auth", "sessionId": "bogus"})

	// Server closes without any error payload; the read just fails.
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("expected read to fail after rejected auth")
	}
	if got := f.hub.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want 0", got)
	}
}

func TestHandshakeIgnoresNonAuthMessages(t *testing.T) {
	f := setupWS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _ := f.users.Create("alice", "h")
	sess, _ := f.sess.Create(u.ID)

	conn := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn, map[string]string{"type": "hello"})
	sendJSON(t, ctx, conn, map[string]string{"type": "subscribe", "sessionId": sess.Token})

	time.Sleep(100 * time.Millisecond)
	if got := f.hub.ClientCount(); got != 0 {
		t.Fatalf("unauthenticated messages must not register: count = %d", got)
	}

	// The channel is still usable; a proper auth completes the handshake.
	sendJSON(t, ctx, conn, map[string]string{"type": "auth", "sessionId": sess.Token})
	snap, _ := readSnapshot(t, ctx, conn)
	if snap.Type != TypeAllTimers {
		t.Errorf("type = %q, want %q", snap.Type, TypeAllTimers)
	}
}

func TestMutationBroadcastReachesAllDevices(t *testing.T) {
	f := setupWS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _ := f.users.Create("alice", "h")
	sess, _ := f.sess.Create(u.ID)

	conn1 := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn1, map[string]string{"type": "auth", "sessionId": sess.Token})
	readSnapshot(t, ctx, conn1)

	conn2 := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn2, map[string]string{"type": "auth", "sessionId": sess.Token})
	readSnapshot(t, ctx, conn2)

	// conn2's post-auth snapshot also went to conn1.
	readSnapshot(t, ctx, conn1)
	waitForClients(t, f.hub, u.ID, 2)

	timer, err := f.timers.Start(u.ID, "deep work")
	if err != nil {
		t.Fatalf("start timer: %v", err)
	}
	f.disp.BroadcastAll(u.ID)

	for _, conn := range []*ws.Conn{conn1, conn2} {
		snap, _ := readSnapshot(t, ctx, conn)
		if snap.Type != TypeAllTimers {
			t.Errorf("type = %q, want %q", snap.Type, TypeAllTimers)
		}
		if len(snap.Timers) != 1 || snap.Timers[0].ID != timer.ID {
			t.Fatalf("timers = %+v, want [%s]", snap.Timers, timer.ID)
		}
	}

	// Stop and broadcast again: both devices see the final state with a
	// fixed duration and no progress field.
	if _, err := f.timers.Stop(u.ID, timer.ID); err != nil {
		t.Fatalf("stop timer: %v", err)
	}
	f.disp.BroadcastAll(u.ID)

	for _, conn := range []*ws.Conn{conn1, conn2} {
		snap, raw := readSnapshot(t, ctx, conn)
		if snap.Timers[0].IsActive {
			t.Error("timer should be stopped")
		}
		if snap.Timers[0].Duration == nil {
			t.Error("stopped timer should carry duration")
		}
		if strings.Contains(string(raw), `"progress"`) {
			t.Errorf("stopped timer must not carry progress: %s", raw)
		}
	}
}

func TestDisconnectLeavesRegistry(t *testing.T) {
	f := setupWS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, _ := f.users.Create("alice", "h")
	sess, _ := f.sess.Create(u.ID)

	conn := dial(t, ctx, f.url)
	sendJSON(t, ctx, conn, map[string]string{"type": "auth", "sessionId": sess.Token})
	readSnapshot(t, ctx, conn)
	waitForClients(t, f.hub, u.ID, 1)

	conn.Close(ws.StatusNormalClosure, "")
	waitForClients(t, f.hub, u.ID, 0)
}
