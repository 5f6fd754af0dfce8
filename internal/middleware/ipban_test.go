package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubBanList struct {
	banned map[string]bool
}

func (s *stubBanList) IsBanned(addr string) bool { return s.banned[addr] }

func TestIPBan(t *testing.T) {
	handlerCalls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(http.StatusOK)
	})
	list := &stubBanList{banned: map[string]bool{"203.0.113.7": true}}
	wrapped := IPBan(list)(handler)

	t.Run("banned address gets a plain 404", func(t *testing.T) {
		handlerCalls = 0
		r := httptest.NewRequest(http.MethodGet, "/v1/register", nil)
		r.RemoteAddr = "203.0.113.7:51234"
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 0, handlerCalls, "handler must never run for banned callers")
	})

	t.Run("other addresses pass through", func(t *testing.T) {
		handlerCalls = 0
		r := httptest.NewRequest(http.MethodGet, "/v1/register", nil)
		r.RemoteAddr = "198.51.100.23:51234"
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, handlerCalls)
	})

	t.Run("unparseable remote address passes through", func(t *testing.T) {
		handlerCalls = 0
		r := httptest.NewRequest(http.MethodGet, "/v1/register", nil)
		r.RemoteAddr = ""
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, handlerCalls)
	})
}
