package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PlaySync/core/auth"
	"PlaySync/core/media"
	"PlaySync/core/playlist"
	"PlaySync/model"
	"PlaySync/repository"
	"PlaySync/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	systemSecret = "system-secret"
	adminToken   = "admin-token"
)

type stubProber struct {
	err error
}

func (p *stubProber) Duration(context.Context, string) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return 3.5, nil
}

type testServer struct {
	*httptest.Server
	users    *auth.Allowlist
	registry *playlist.Registry
	subs     *playlist.Subscribers
	pending  *playlist.PendingDeletions
	store    *storage.LocalStore
	prober   *stubProber
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&model.MediaItem{}))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	ts := &testServer{
		users:    auth.NewAllowlist(nil),
		registry: playlist.NewRegistry(playlist.SystemClock),
		subs:     playlist.NewSubscribers(),
		pending:  playlist.NewPendingDeletions(),
		store:    store,
		prober:   &stubProber{},
	}
	require.NoError(t, ts.users.Add(context.Background(), adminToken))
	gate := auth.NewGate(auth.NewSystemKeys([]string{systemSecret}), ts.users)

	library := media.NewLibrary(repository.NewGormMediaRepository(gdb), store, ts.prober, ts.pending)
	dispatch := playlist.NewDispatcher(ts.subs)
	engine := playlist.NewEngine(ts.registry, dispatch, library, ts.pending, playlist.EngineConfig{})
	commands := playlist.NewCommandHandler(ts.registry, ts.subs, dispatch, library, gate)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(ctx, Options{
		Gate:        gate,
		Library:     library,
		Engine:      engine,
		Store:       store,
		Subscribers: ts.subs,
		Commands:    commands,
		MaxUploadMB: 1,
	})
	ts.Server = httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Server.Close()
		cancel()
		ts.registry.Close()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) upload(t *testing.T, token, playlistID, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if playlistID != "" {
		require.NoError(t, mw.WriteField("playListId", playlistID))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return ts.do(t, http.MethodPost, "/upload", token, &buf, mw.FormDataContentType())
}

func (ts *testServer) uploadOK(t *testing.T, playlistID, filename string) model.MediaItem {
	t.Helper()
	resp := ts.upload(t, adminToken, playlistID, filename, "audio bytes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var item model.MediaItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	return item
}

func (ts *testServer) list(t *testing.T, playlistID string) []model.MediaItem {
	t.Helper()
	resp := ts.do(t, http.MethodGet, "/"+playlistID, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []model.MediaItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	return items
}

func TestAddAndRemoveUser(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		token  string
		body   string
		ctype  string
		status int
	}{
		{"no credentials", "", `{"userToken":"u1"}`, "application/json", http.StatusUnauthorized},
		{"wrong secret", "nope", `{"userToken":"u1"}`, "application/json", http.StatusUnauthorized},
		{"admin token is not a system secret", adminToken, `{"userToken":"u1"}`, "application/json", http.StatusUnauthorized},
		{"missing token", systemSecret, `{}`, "application/json", http.StatusBadRequest},
		{"bad json", systemSecret, `{`, "application/json", http.StatusBadRequest},
		{"json body", systemSecret, `{"userToken":"u1"}`, "application/json", http.StatusOK},
		{"form body", systemSecret, url.Values{"userToken": {"u2"}}.Encode(), "application/x-www-form-urlencoded", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/add-user", tt.token, strings.NewReader(tt.body), tt.ctype)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.True(t, ts.users.Contains("u1"))
	assert.True(t, ts.users.Contains("u2"))

	resp := ts.do(t, http.MethodPost, "/remove-user", systemSecret, strings.NewReader(`{"userToken":"u1"}`), "application/json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, ts.users.Contains("u1"))

	resp = ts.do(t, http.MethodPost, "/remove-user", systemSecret, strings.NewReader(`{"userToken":"never-added"}`), "application/json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/remove-user", "", strings.NewReader(`{"userToken":"u2"}`), "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, ts.users.Contains("u2"))
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.upload(t, "", "pl1", "a.mp3", "x").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, ts.upload(t, systemSecret, "pl1", "a.mp3", "x").StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.upload(t, adminToken, "", "a.mp3", "x").StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.upload(t, adminToken, "pl1", "", "").StatusCode)

	assert.Empty(t, ts.list(t, "pl1"))
	assert.Zero(t, ts.registry.Len())
}

func TestUploadSeedsPlaylist(t *testing.T) {
	ts := newTestServer(t)

	first := ts.uploadOK(t, "pl1", "one.mp3")
	assert.Equal(t, "pl1", first.PlaylistID)
	assert.Equal(t, 3.5, first.DurationSeconds)
	assert.Equal(t, 1, first.SortOrder)
	assert.True(t, strings.HasPrefix(first.FilePath, storage.PublicPrefix))

	second := ts.uploadOK(t, "pl1", "two.mp3")
	assert.Equal(t, 2, second.SortOrder)

	var st model.PlaylistState
	require.True(t, ts.registry.View(context.Background(), "pl1", func(s model.PlaylistState) { st = s }))
	assert.Equal(t, first.ID, st.CurrentMediaID, "a later upload does not change what is playing")
	assert.True(t, st.IsPlaying)

	items := ts.list(t, "pl1")
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestUploadProbeFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.prober.err = errors.New("invalid data found when processing input")

	resp := ts.upload(t, adminToken, "pl1", "bad.mp3", "x")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "invalid data found")

	objects, err := ts.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objects)
	assert.Zero(t, ts.registry.Len())
}

func TestDeleteHidesMediaUntilProcessed(t *testing.T) {
	ts := newTestServer(t)
	a := ts.uploadOK(t, "pl1", "a.mp3")
	b := ts.uploadOK(t, "pl1", "b.mp3")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodDelete, "/"+a.ID, "", nil, "").StatusCode)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/"+a.ID, adminToken, nil, "").StatusCode)
	assert.True(t, ts.pending.Contains(a.ID))

	items := ts.list(t, "pl1")
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	// the file stays served until the engine deletes it
	name, err := storage.ObjectName(a.FilePath)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(ts.store.Dir(), name))
	assert.NoError(t, err)
}

func TestServeUploadedMedia(t *testing.T) {
	ts := newTestServer(t)
	item := ts.uploadOK(t, "pl1", "song.mp3")

	resp := ts.do(t, http.MethodGet, item.FilePath, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "audio bytes", string(body))

	req, err := http.NewRequest(http.MethodGet, ts.URL+item.FilePath, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=0-4")
	ranged, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ranged.Body.Close()
	assert.Equal(t, http.StatusPartialContent, ranged.StatusCode)
	body, _ = io.ReadAll(ranged.Body)
	assert.Equal(t, "audio", string(body))

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/uploads/missing.mp3", "", nil, "").StatusCode)
}

func TestHealthMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, []interface{}{}, health["playlists"])
	assert.Equal(t, 0.0, health["pendingDeletions"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	// one request so the http metrics have a sample
	ts.list(t, "pl1")
	resp = ts.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "playsync_http_requests_total")

	resp = ts.do(t, http.MethodOptions, "/upload", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestHealthReportsPlaylistsAndPendingDeletions(t *testing.T) {
	ts := newTestServer(t)
	item := ts.uploadOK(t, "pl1", "one.mp3")
	ts.uploadOK(t, "pl1", "two.mp3")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/"+item.ID, adminToken, nil, "").StatusCode)

	resp := ts.do(t, http.MethodGet, "/health", "", nil, "")
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, []interface{}{"pl1"}, health["playlists"])
	assert.Equal(t, 1.0, health["pendingDeletions"])
}

func TestFixedRoutesShadowPlaylistIDs(t *testing.T) {
	ts := newTestServer(t)
	ts.uploadOK(t, "health", "one.mp3")

	// GET /health stays the liveness check even when a playlist has that id
	resp := ts.do(t, http.MethodGet, "/health", "", nil, "")
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, []interface{}{"health"}, health["playlists"])
}

func TestEventChannelEndToEnd(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() playlist.WSMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg playlist.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// subscribing before the playlist exists
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "subscribe",
		"data": map[string]interface{}{"playListId": "pl1"},
	}))
	require.Eventually(t, func() bool { return ts.subs.Count("pl1") == 1 }, 2*time.Second, 10*time.Millisecond)

	item := ts.uploadOK(t, "pl1", "first.mp3")

	msg := read()
	require.Equal(t, playlist.MsgTypeStatus, msg.Type)
	var st model.Status
	require.NoError(t, json.Unmarshal(msg.Data, &st))
	assert.Equal(t, item.ID, st.MediaID)
	assert.True(t, st.IsPlaying)
	assert.Equal(t, 0.0, st.Time)
	assert.Equal(t, item.FilePath, st.FilePath)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "pause",
		"data": map[string]interface{}{"playListId": "pl1", "userToken": adminToken},
	}))
	msg = read()
	require.NoError(t, json.Unmarshal(msg.Data, &st))
	assert.False(t, st.IsPlaying)
}
