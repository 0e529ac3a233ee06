// AngelaMos | 2026
// storage_test.go

package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(config.StorageConfig{
		ProjectURL: srv.URL + "/",
		ServiceKey: "service-key",
		Timeout:    2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPutSendsUpsert(t *testing.T) {
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/avatars/u1/a%20b.png", r.URL.EscapedPath())
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	})

	err := c.Put(context.Background(), "avatars", "u1/a b.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "png", gotBody)
}

func TestPutRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	err := c.Put(context.Background(), "uploads", "u1/x.mp3", "audio/mpeg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPutDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	})

	err := c.Put(context.Background(), "uploads", "u1/x.mp3", "audio/mpeg", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, c.Delete(context.Background(), "uploads", "u1/gone.wav"))
}

func TestPublicURL(t *testing.T) {
	c := NewClient(config.StorageConfig{
		ProjectURL: "https://abc.supabase.co/",
	}, slog.Default())

	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/avatars/u1/pic.webp",
		c.PublicURL("avatars", "u1/pic.webp"),
	)
}
