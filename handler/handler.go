// Package handler provides the HTTP glue over the user store.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/voyago/trip-server/auth"
	"github.com/voyago/trip-server/itinerary"
	"github.com/voyago/trip-server/store"
)

// Options carries the handler's auth settings and logger.
type Options struct {
	SecretKey     []byte
	TokenValidity time.Duration
	Log           *zap.Logger
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store store.Store
	gen   *itinerary.Generator
	opts  Options
	mux   *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(s store.Store, gen *itinerary.Generator, opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.TokenValidity <= 0 {
		opts.TokenValidity = 24 * time.Hour
	}
	h := &Handler{store: s, gen: gen, opts: opts, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	h.mux.HandleFunc("POST /signup", h.signup)
	h.mux.HandleFunc("POST /login", h.login)
	h.mux.HandleFunc("GET /me", h.me)

	h.mux.HandleFunc("GET /users", h.listUsers)
	h.mux.HandleFunc("GET /users/{id}", h.getUser)
	h.mux.HandleFunc("PATCH /users/{id}", h.updateUser)
	h.mux.HandleFunc("DELETE /users/{id}", h.deleteUser)

	h.mux.HandleFunc("POST /itineraries", h.generateItinerary)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// internalError hides the fault behind a generic response and logs it.
func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.opts.Log.Error("internal error", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// userResponse is a User with the secret stripped.
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func sanitize(u *store.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username}
}

// authenticate resolves the bearer token to the user it was issued for.
func (h *Handler) authenticate(r *http.Request) (*store.User, error) {
	header := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("missing bearer token")
	}
	id, err := auth.UserIDFromToken(tok, h.opts.SecretKey)
	if err != nil {
		return nil, err
	}
	u, err := h.store.Get(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("unknown user")
	}
	return u, nil
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Trip Server",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- auth endpoints ----------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) issueToken(w http.ResponseWriter, status int, u *store.User) {
	tok, err := auth.GenerateToken(u.ID, h.opts.SecretKey, h.opts.TokenValidity)
	if err != nil {
		h.internalError(w, "issue token", err)
		return
	}
	writeJSON(w, status, map[string]any{
		"user":  sanitize(u),
		"token": tok,
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := readJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	// Lookup-then-create: the store permits duplicate usernames, so this
	// check is racy under concurrent signups for the same name.
	existing, err := h.store.GetByUsername(creds.Username)
	if err != nil {
		h.internalError(w, "signup lookup", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "hash password", err)
		return
	}
	u, err := h.store.Create(creds.Username, string(hash))
	if err != nil {
		h.internalError(w, "create user", err)
		return
	}
	h.issueToken(w, http.StatusCreated, u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := readJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.store.GetByUsername(creds.Username)
	if err != nil {
		h.internalError(w, "login lookup", err)
		return
	}
	// Same response for unknown user and wrong password.
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Secret), []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	h.issueToken(w, http.StatusOK, u)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sanitize(u))
}

// ---------- user CRUD ----------

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List()
	if err != nil {
		h.internalError(w, "list users", err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, sanitize(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		h.internalError(w, "get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, sanitize(u))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := store.Patch{Username: body.Username}
	if body.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			h.internalError(w, "hash password", err)
			return
		}
		secret := string(hash)
		patch.Secret = &secret
	}

	u, err := h.store.Update(r.PathValue("id"), patch)
	if err != nil {
		h.internalError(w, "update user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, sanitize(u))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	existed, err := h.store.Delete(r.PathValue("id"))
	if err != nil {
		h.internalError(w, "delete user", err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- itineraries ----------

func (h *Handler) generateItinerary(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req itinerary.Request
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Destination == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}

	doc, err := h.gen.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, itinerary.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "itinerary generation is not configured")
			return
		}
		h.internalError(w, "generate itinerary", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
