package tiktok

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

type fakePlatform struct {
	roomCalls atomic.Int32
	liveCalls atomic.Int32
	alive     atomic.Bool
	stall     atomic.Int64
}

func (p *fakePlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api-live/user/room", func(w http.ResponseWriter, r *http.Request) {
		p.roomCalls.Add(1)
		assert.Equal(t, "sessionid_ss=abc", r.Header.Get("Cookie"))
		switch r.URL.Query().Get("uniqueId") {
		case "alice":
			w.Write([]byte(`{"statusCode":0,"data":{"user":{"roomId":"7001"}}}`))
		case "offline":
			w.Write([]byte(`{"statusCode":0,"data":{"user":{"roomId":""}}}`))
		default:
			w.Write([]byte(`{"statusCode":19881007,"message":"user_not_found"}`))
		}
	})
	mux.HandleFunc("/webcast/room/check_alive/", func(w http.ResponseWriter, r *http.Request) {
		p.liveCalls.Add(1)
		assert.Equal(t, "7001", r.URL.Query().Get("room_ids"))
		if p.alive.Load() {
			w.Write([]byte(`{"data":[{"alive":true,"room_id":7001}]}`))
			return
		}
		w.Write([]byte(`{"data":[{"alive":false,"room_id":7001}]}`))
	})
	mux.HandleFunc("/webcast/room/info/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":2,"owner":{"display_id":"alice"},"stream_url":{"flv_pull_url":{"SD1":"` +
			"http://" + r.Host + `/stream/sd.flv","HD1":"http://` + r.Host + `/stream/hd.flv"}}}}`))
	})
	mux.HandleFunc("/stream/hd.flv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("FLV-1"))
		w.(http.Flusher).Flush()
		if stall := time.Duration(p.stall.Load()); stall > 0 {
			select {
			case <-time.After(stall):
			case <-r.Context().Done():
				return
			}
		}
		w.Write([]byte("FLV-2"))
	})
	mux.HandleFunc("/stream/broken.flv", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/live/blocked", http.StatusFound)
	})
	return mux
}

func newTestClient(t *testing.T, p *fakePlatform) *Client {
	srv := httptest.NewServer(p.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(Config{
		Cookies:     map[string]string{"sessionid_ss": "abc"},
		ReadTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	c.WebURL = srv.URL
	c.WebcastURL = srv.URL
	return c
}

func TestResolveAndCheckLive(t *testing.T) {
	ctx := context.Background()
	p := &fakePlatform{}
	c := newTestClient(t, p)

	roomID, err := c.ResolveRoomFromHandle(ctx, "@alice")
	require.NoError(t, err)
	assert.Equal(t, "7001", roomID)

	_, err = c.ResolveRoomFromHandle(ctx, "offline")
	assert.ErrorIs(t, err, types.ErrNotLive)

	_, err = c.ResolveRoomFromHandle(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
	assert.Equal(t, types.ErrorClassFatalTask, types.Classify(err))

	target, err := types.NewTargetFromHandle("alice")
	require.NoError(t, err)
	live, err := c.IsLive(ctx, target)
	require.NoError(t, err)
	assert.False(t, live)

	p.alive.Store(true)
	live, err = c.IsLive(ctx, target)
	require.NoError(t, err)
	assert.True(t, live)
	assert.Equal(t, "7001", target.EffectiveRoomID())

	offline, err := types.NewTargetFromHandle("offline")
	require.NoError(t, err)
	live, err = c.IsLive(ctx, offline)
	require.NoError(t, err)
	assert.False(t, live)
}

func TestResolvePlaybackURLPrefersBestQuality(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &fakePlatform{})

	target, err := types.NewTargetFromRoomID("7001")
	require.NoError(t, err)
	u, err := c.ResolvePlaybackURL(ctx, target)
	require.NoError(t, err)
	assert.Contains(t, u, "/stream/hd.flv")
	assert.Equal(t, "alice", target.EffectiveHandle())

	handle, err := c.ResolveUserFromRoom(ctx, "7001")
	require.NoError(t, err)
	assert.Equal(t, "alice", handle)

	assert.Equal(t, "", pickPullURL(nil))
	assert.Equal(t, "b", pickPullURL(map[string]string{"ORIGIN": "b", "X": ""}))
}

func TestResolveURL(t *testing.T) {
	ctx := context.Background()
	p := &fakePlatform{}
	c := newTestClient(t, p)

	handle, roomID, err := c.ResolveURL(ctx, "https://www.tiktok.com/@alice/live")
	require.NoError(t, err)
	assert.Equal(t, "alice", handle)
	assert.Equal(t, "7001", roomID)

	handle, roomID, err = c.ResolveURL(ctx, "https://www.tiktok.com/@offline/live")
	require.NoError(t, err)
	assert.Equal(t, "offline", handle)
	assert.Equal(t, "", roomID)
}

func TestFetchChunks(t *testing.T) {
	ctx := context.Background()
	p := &fakePlatform{}
	c := newTestClient(t, p)

	target, err := types.NewTargetFromRoomID("7001")
	require.NoError(t, err)
	u, err := c.ResolvePlaybackURL(ctx, target)
	require.NoError(t, err)

	body, err := c.FetchChunks(ctx, u)
	require.NoError(t, err)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "FLV-1FLV-2", string(b))

	t.Run("stalled", func(t *testing.T) {
		p.stall.Store(int64(5 * time.Second))
		defer p.stall.Store(0)

		body, err := c.FetchChunks(ctx, u)
		require.NoError(t, err)
		defer body.Close()
		b, err := io.ReadAll(body)
		assert.Equal(t, "FLV-1", string(b))
		var errTransport types.ErrTransport
		require.True(t, errors.As(err, &errTransport), "%v", err)
		assert.Equal(t, types.ErrorClassTransientFast, types.Classify(err))
	})

	t.Run("bad_gateway", func(t *testing.T) {
		_, err := c.FetchChunks(ctx, c.WebURL+"/stream/broken.flv")
		assert.Equal(t, types.ErrorClassTransientFast, types.Classify(err))
	})

	t.Run("refused", func(t *testing.T) {
		_, err := c.FetchChunks(ctx, "http://127.0.0.1:1/stream.flv")
		assert.Equal(t, types.ErrorClassTransientSlow, types.Classify(err))
	})
}

func TestIsCountryBlacklisted(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &fakePlatform{})

	blacklisted, err := c.IsCountryBlacklisted(ctx)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	// cached
	c.WebURL = "http://127.0.0.1:1"
	blacklisted, err = c.IsCountryBlacklisted(ctx)
	require.NoError(t, err)
	assert.True(t, blacklisted)
}

func TestCookieHeader(t *testing.T) {
	assert.Equal(t, "", cookieHeader(nil))
	assert.Equal(t, "a=1; b=2", cookieHeader(map[string]string{"b": "2", "a": "1"}))
}
