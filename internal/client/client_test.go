package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliu/pairchat/internal/models"
)

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"user":{"id":"u1","username":"alice"},"token":"tok"}`))
	})
	mux.HandleFunc("/chatrooms", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"roomId":"r1","message":"Chat room created"}`))
	})
	mux.HandleFunc("/messages/r1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("after"))
		w.Write([]byte(`[{"id":"m3","seq":3,"roomId":"r1","text":"three"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, zerolog.Nop())
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	user, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	roomID, created, err := c.CreateRoom(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "r1", roomID)
	assert.True(t, created)

	messages, err := c.Messages(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "three", messages[0].Text)
}

// fakeSource serves a growing message list and honours the seq cursor.
type fakeSource struct {
	mu       sync.Mutex
	messages  []models.Message
	calls     int
	lastAfter int64
	err       error
}

func (f *fakeSource) add(id string, seq int64) {
	f.addAt(id, seq, time.Time{})
}

func (f *fakeSource) addAt(id string, seq int64, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, models.Message{ID: id, Seq: seq, CreatedAt: createdAt, MessageContent: models.MessageContent{Text: id}})
}

func (f *fakeSource) Messages(_ context.Context, _ string, afterSeq int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastAfter = afterSeq
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Message
	for _, m := range f.messages {
		if m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

// overlappingSource ignores the cursor and always returns everything.
type overlappingSource struct{ fakeSource }

func (o *overlappingSource) Messages(ctx context.Context, roomID string, _ int64) ([]models.Message, error) {
	return o.fakeSource.Messages(ctx, roomID, 0)
}

func ids(messages []models.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func TestSyncerPollIsIdempotent(t *testing.T) {
	src := &overlappingSource{}
	src.add("m1", 1)
	src.add("m2", 2)
	s := NewSyncer(src, "r1", time.Second, zerolog.Nop())
	ctx := context.Background()

	added, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(added))

	added, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, added)

	src.add("m3", 3)
	added, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, ids(added))
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages()))
}

func TestSyncerRecordKeepsCursor(t *testing.T) {
	src := &fakeSource{}
	src.add("m1", 1)
	s := NewSyncer(src, "r1", time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err := s.Poll(ctx)
	require.NoError(t, err)

	// The peer's m2 lands before our own m3 is acknowledged.
	src.add("m2", 2)
	src.add("m3", 3)
	assert.Len(t, s.Record(models.Message{ID: "m3", Seq: 3}), 1)

	added, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, ids(added))
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages()))
}

func TestSyncerPicksUpLateCommit(t *testing.T) {
	src := &fakeSource{}
	now := time.Now()
	src.addAt("m11", 11, now)
	s := NewSyncer(src, "r1", time.Second, zerolog.Nop())
	ctx := context.Background()

	added, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m11"}, ids(added))

	// seq 10 was allocated first but its transaction committed after 11.
	src.addAt("m10", 10, now.Add(-time.Second))
	added, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m10"}, ids(added))

	for i := 0; i < 2; i++ {
		added, err = s.Poll(ctx)
		require.NoError(t, err)
		assert.Empty(t, added)
	}
	assert.Equal(t, []string{"m10", "m11"}, ids(s.Messages()))
}

func TestSyncerCursorTrailsSettleWindow(t *testing.T) {
	src := &fakeSource{}
	now := time.Now()
	src.addAt("m1", 1, now.Add(-2*time.Minute))
	src.addAt("m2", 2, now.Add(-time.Minute))
	src.addAt("m3", 3, now)
	s := NewSyncer(src, "r1", time.Second, zerolog.Nop())
	s.SettleWindow = 30 * time.Second
	ctx := context.Background()

	_, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), src.lastAfter)

	_, err = s.Poll(ctx)
	require.NoError(t, err)
	// m3 is still inside the window and gets fetched again.
	assert.Equal(t, int64(2), src.lastAfter)

	src.addAt("m4", 4, now.Add(time.Minute))
	added, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4"}, ids(added))

	_, err = s.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.lastAfter)
}

func TestSyncerRun(t *testing.T) {
	src := &fakeSource{}
	src.add("m1", 1)
	s := NewSyncer(src, "r1", 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(batch []models.Message) {
			mu.Lock()
			got = append(got, ids(batch)...)
			mu.Unlock()
		})
	}()

	src.add("m2", 2)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2"}, got)
}

func TestSyncerRunSurvivesErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	s := NewSyncer(src, "r1", 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx, func([]models.Message) { t.Error("no messages expected") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Greater(t, src.calls, 1)
}
