package connectivity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/server"
	"github.com/aretw0/notesync/pkg/adapters/cloud"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
)

func TestManual_NotifiesTransitionsOnly(t *testing.T) {
	m := connectivity.NewManual(false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := m.Watch(ctx)

	m.Set(false)
	m.Set(true)
	assert.True(t, m.Online())
	assert.True(t, <-changes)

	select {
	case v := <-changes:
		t.Fatalf("unexpected notification %v", v)
	default:
	}
}

func TestProbe_OnlineWhileConnected(t *testing.T) {
	secret := []byte("s")
	srv, err := server.New(server.Config{Secret: secret})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	token, err := server.IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)

	var remoteChanges atomic.Int32
	probe := connectivity.NewProbe(ts.URL, cloud.StaticToken(token),
		connectivity.WithBackoff(10*time.Millisecond, 50*time.Millisecond),
		connectivity.OnRemoteChange(func() { remoteChanges.Add(1) }),
	)
	assert.False(t, probe.Online())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- probe.Run(ctx) }()

	require.Eventually(t, probe.Online, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 1 }, 3*time.Second, 10*time.Millisecond)

	client := cloud.NewClient(ts.URL, cloud.StaticToken(token), nil, nil)
	require.NoError(t, client.Call(ctx, cloud.ProcNotesCreate, core.NoteInput{ID: "n1"}, nil))
	assert.Eventually(t, func() bool { return remoteChanges.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, probe.Online())
}

func TestProbe_ReconnectsAfterDrop(t *testing.T) {
	var accepted atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			return
		}
		// the first connection is dropped right away
		if accepted.Add(1) == 1 {
			_ = conn.Close(ws.StatusGoingAway, "bye")
			return
		}
		_, _, _ = conn.Read(r.Context())
	}))
	defer ts.Close()

	probe := connectivity.NewProbe(ts.URL, cloud.StaticToken("tok"),
		connectivity.WithBackoff(10*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = probe.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return accepted.Load() >= 2 && probe.Online()
	}, 3*time.Second, 10*time.Millisecond)
}

func TestProbe_NoTokenStaysOffline(t *testing.T) {
	probe := connectivity.NewProbe("http://127.0.0.1:1", cloud.StaticToken(""),
		connectivity.WithBackoff(5*time.Millisecond, 10*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, probe.Run(ctx))
	assert.False(t, probe.Online())
}

func TestReachable(t *testing.T) {
	srv, err := server.New(server.Config{Secret: []byte("s")})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())

	ctx := context.Background()
	assert.True(t, connectivity.Reachable(ctx, ts.URL+"/", nil))

	ts.Close()
	assert.False(t, connectivity.Reachable(ctx, ts.URL, nil))
	assert.False(t, connectivity.Reachable(ctx, "://bad", nil))
}
