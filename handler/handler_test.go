package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/trip-server/handler"
	"github.com/voyago/trip-server/itinerary"
	"github.com/voyago/trip-server/store"
)

func newTestHandler(t *testing.T, gen *itinerary.Generator) *handler.Handler {
	t.Helper()
	if gen == nil {
		gen = itinerary.New("", time.Minute)
	}
	return handler.New(store.NewMemoryStore(), gen, handler.Options{
		SecretKey:     []byte("test-secret"),
		TokenValidity: time.Hour,
	})
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type authResponse struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Token string `json:"token"`
}

func signup(t *testing.T, h http.Handler, username, password string) authResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/signup", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.User.ID)
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestSignupLoginMe(t *testing.T) {
	h := newTestHandler(t, nil)

	created := signup(t, h, "alice", "pw1")
	assert.Equal(t, "alice", created.User.Username)

	t.Run("duplicate username", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/signup", "", map[string]string{
			"username": "alice", "password": "other",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/signup", "", map[string]string{"username": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/login", "", map[string]string{
			"username": "alice", "password": "pw1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp authResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, created.User.ID, resp.User.ID)
	})

	t.Run("login wrong password", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/login", "", map[string]string{
			"username": "alice", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login unknown user", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/login", "", map[string]string{
			"username": "ghost", "password": "pw",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/me", created.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var me map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
		assert.Equal(t, created.User.ID, me["id"])
	})

	t.Run("me without token", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserCRUD(t *testing.T) {
	h := newTestHandler(t, nil)
	created := signup(t, h, "bob", "pw")
	id := created.User.ID

	t.Run("list strips secrets", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/users", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
		var users []map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		require.Len(t, users, 1)
		assert.Equal(t, "bob", users[0]["username"])
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/users/"+id, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/users/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("patch username", func(t *testing.T) {
		rec := do(t, h, http.MethodPatch, "/users/"+id, "", map[string]string{
			"username": "bobby",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var u map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
		assert.Equal(t, "bobby", u["username"])
		assert.Equal(t, id, u["id"])
	})

	t.Run("patch password allows new login", func(t *testing.T) {
		rec := do(t, h, http.MethodPatch, "/users/"+id, "", map[string]string{
			"password": "pw2",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(t, h, http.MethodPost, "/login", "", map[string]string{
			"username": "bobby", "password": "pw2",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("patch missing", func(t *testing.T) {
		rec := do(t, h, http.MethodPatch, "/users/nope", "", map[string]string{
			"username": "x",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete then delete again", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/users/"+id, "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(t, h, http.MethodDelete, "/users/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestItineraryEndpoint(t *testing.T) {
	script := filepath.Join(t.TempDir(), "gen.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat\n"), 0o755))

	h := newTestHandler(t, itinerary.New(script, time.Minute))
	created := signup(t, h, "carol", "pw")

	t.Run("generates", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/itineraries", created.Token, map[string]any{
			"destination": "Lisbon", "days": 2,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var req itinerary.Request
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))
		assert.Equal(t, "Lisbon", req.Destination)
	})

	t.Run("requires auth", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/itineraries", "", map[string]any{
			"destination": "Lisbon",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("requires destination", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/itineraries", created.Token, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unconfigured", func(t *testing.T) {
		bare := newTestHandler(t, nil)
		other := signup(t, bare, "dave", "pw")
		rec := do(t, bare, http.MethodPost, "/itineraries", other.Token, map[string]any{
			"destination": "Oslo",
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
