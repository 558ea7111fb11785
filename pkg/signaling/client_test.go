package signaling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

const testAnswer = "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestExchangeFollowsRedirects(t *testing.T) {
	var posts atomic.Int32

	mux := http.NewServeMux()
	for i := 0; i < 3; i++ {
		next := fmt.Sprintf("/hop%d", i+1)
		path := fmt.Sprintf("/hop%d", i)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			posts.Add(1)
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Location", next)
			w.WriteHeader(http.StatusFound)
		})
	}
	mux.HandleFunc("/hop3", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "offer-sdp", string(body))
		assert.Equal(t, ContentTypeSDP, r.Header.Get("Content-Type"))
		assert.Equal(t, ContentTypeSDP, r.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Location", "/resource/42")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, testAnswer)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, DefaultConfig())
	answer, resource, err := c.Exchange(context.Background(), srv.URL+"/hop0", "secret", "offer-sdp")
	require.NoError(t, err)

	assert.Equal(t, int32(4), posts.Load(), "три редиректа и финальный POST")
	assert.Equal(t, testAnswer, answer)
	assert.Equal(t, srv.URL+"/resource/42", resource)
}

func TestExchangeRedirectLimit(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.Header().Set("Location", r.URL.Path)
		w.WriteHeader(http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRedirects = 2
	c := newTestClient(t, cfg)

	_, _, err := c.Exchange(context.Background(), srv.URL+"/loop", "", "offer")
	require.Error(t, err)
	assert.ErrorIs(t, err, rtc.ErrSignaling)
	assert.Equal(t, int32(3), posts.Load())
}

func TestExchangeStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
	}{
		{"не авторизован", http.StatusUnauthorized, nil},
		{"200 вместо 201", http.StatusOK, nil},
		{"ошибка сервера", http.StatusInternalServerError, nil},
		{"редирект без Location", http.StatusFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, DefaultConfig())
			_, _, err := c.Exchange(context.Background(), srv.URL, "", "offer")
			require.Error(t, err)

			var rtcErr *rtc.Error
			require.True(t, errors.As(err, &rtcErr))
			assert.Equal(t, rtc.ErrorCodeSignaling, rtcErr.Code)
			assert.Equal(t, tt.status, rtcErr.StatusCode)
		})
	}
}

func TestExchangeWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "v=0\no=server 1 1 IN IP4 0.0.0.0\ns=\nt=0 0\n")
	}))
	defer srv.Close()

	c := newTestClient(t, DefaultConfig())
	answer, resource, err := c.Exchange(context.Background(), srv.URL, "", "offer")
	require.NoError(t, err)
	assert.Equal(t, "v=0\no=- 1 1 IN IP4 0.0.0.0\ns=-\nt=0 0\n", answer)
	assert.Equal(t, srv.URL, resource)
}

func TestExchangeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, DefaultConfig())
	_, _, err := c.Exchange(context.Background(), url, "", "offer")
	assert.ErrorIs(t, err, rtc.ErrSignaling)
}

func TestDelete(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, DefaultConfig())
	require.NoError(t, c.Delete(context.Background(), srv.URL+"/resource/1", "tok"))
	assert.Equal(t, http.MethodDelete, method)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxRedirects = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}
