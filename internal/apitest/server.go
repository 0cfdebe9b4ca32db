// Package apitest runs an in-process fake of the todo API for tests. It
// mirrors the reference server's routes, status codes and error bodies, and
// records every request so tests can assert on call counts and headers.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/naveenspark/todo/pkg/domain"
)

// Route names, usable with Count, Fail and Hold.
const (
	RouteRegister = "register"
	RouteLogin    = "login"
	RouteLogout   = "logout"
	RouteList     = "list"
	RouteCount    = "count"
	RouteGet      = "get"
	RouteCreate   = "create"
	RouteComplete = "complete"
)

// Request is one recorded call.
type Request struct {
	Route         string
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type user struct {
	id   string
	hash []byte
}

// Server is the fake API. Use New; the zero value is not usable.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]user
	sessions map[string]string // token -> username
	todos    []domain.Todo     // newest first
	nextID   int
	nextTok  int
	requests []Request
	failures map[string][]int
	gates    map[string][]*Gate
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[string]user),
		sessions: make(map[string]string),
		failures: make(map[string][]int),
		gates:    make(map[string][]*Gate),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost).Name(RouteRegister)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost).Name(RouteLogout)
	r.HandleFunc("/api/todos", s.handleList).Methods(http.MethodGet).Name(RouteList)
	r.HandleFunc("/api/todos", s.handleCreate).Methods(http.MethodPost).Name(RouteCreate)
	r.HandleFunc("/api/todos/count", s.handleCount).Methods(http.MethodGet).Name(RouteCount)
	r.HandleFunc("/api/todos/{id}", s.handleGet).Methods(http.MethodGet).Name(RouteGet)
	r.HandleFunc("/api/todos/{id}/complete", s.handleComplete).Methods(http.MethodPut).Name(RouteComplete)
	r.Use(s.record)
	return r
}

// record logs the call, then applies any Hold gate or injected failure.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if cur := mux.CurrentRoute(r); cur != nil {
			route = cur.GetName()
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Route:         route,
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		var gate *Gate
		if gs := s.gates[route]; len(gs) > 0 {
			gate, s.gates[route] = gs[0], gs[1:]
		}
		status := 0
		if fs := s.failures[route]; len(fs) > 0 {
			status, s.failures[route] = fs[0], fs[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			close(gate.arrived)
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			msg := http.StatusText(status)
			if status == http.StatusUnauthorized {
				msg = "invalid_token"
			}
			writeError(w, status, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- test controls ---

// AddUser registers an account directly.
func (s *Server) AddUser(username, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = user{id: "u-" + username, hash: hash}
}

// IssueToken creates a session for username without a login call.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username)
}

func (s *Server) issueLocked(username string) string {
	s.nextTok++
	tok := "tok-" + strconv.Itoa(s.nextTok)
	s.sessions[tok] = username
	return tok
}

// SetToken makes token a valid session for username.
func (s *Server) SetToken(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = username
}

// RevokeAll invalidates every session, so the next authenticated call gets 401.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]string)
}

// Seed stores todos for username in the given order. Missing ids are assigned
// sequentially starting at 1.
func (s *Server) Seed(username string, todos ...domain.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.userIDLocked(username)
	for _, td := range todos {
		if td.ID == "" {
			s.nextID++
			td.ID = domain.ID(strconv.Itoa(s.nextID))
		} else if n, err := strconv.Atoi(td.ID.String()); err == nil && n > s.nextID {
			s.nextID = n
		}
		td.UserID = owner
		if td.CreatedAt.IsZero() {
			td.CreatedAt = domain.Timestamp{Time: time.Now().UTC()}
		}
		s.todos = append(s.todos, td)
	}
}

// Todos returns a copy of the stored todos.
func (s *Server) Todos() []domain.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Todo(nil), s.todos...)
}

// Fail makes the next calls to route answer with the given statuses, in order.
func (s *Server) Fail(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// Count returns how many calls route has received.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Route == route {
			n++
		}
	}
	return n
}

// Requests returns every recorded call in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Last returns the most recent call to route.
func (s *Server) Last(route string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Route == route {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// Gate parks one request until released.
type Gate struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived is closed once the held request reaches the server.
func (g *Gate) Arrived() <-chan struct{} { return g.arrived }

// Release lets the held request proceed.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// Hold parks the next call to route until the returned gate is released.
func (s *Server) Hold(route string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[route] = append(s.gates[route], g)
	return g
}

// --- handlers ---

func (s *Server) userIDLocked(username string) domain.ID {
	if u, ok := s.users[username]; ok {
		return domain.ID(u.id)
	}
	return domain.ID("u-" + username)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return "", false
	}
	s.mu.Lock()
	username, ok := s.sessions[strings.TrimPrefix(h, "Bearer ")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return "", false
	}
	return username, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash password")
		return
	}
	s.mu.Lock()
	if _, exists := s.users[creds.Username]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	u := user{id: "u-" + creds.Username, hash: hash}
	s.users[creds.Username] = u
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.User{
		ID:        domain.ID(u.id),
		Username:  creds.Username,
		CreatedAt: domain.Timestamp{Time: time.Now().UTC()},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[creds.Username]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.mu.Lock()
	tok := s.issueLocked(creds.Username)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, domain.LoginResponse{
		SessionToken: tok,
		UserID:       domain.ID(u.id),
		Username:     creds.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	s.mu.Lock()
	delete(s.sessions, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) owned(username string, r *http.Request) []domain.Todo {
	q := r.URL.Query()
	desc := strings.ToLower(q.Get("description"))
	var completed *bool
	if v := q.Get("completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			completed = &b
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.userIDLocked(username)
	out := []domain.Todo{}
	for _, td := range s.todos {
		if td.UserID != owner {
			continue
		}
		if desc != "" && !strings.Contains(strings.ToLower(td.Description), desc) {
			continue
		}
		if completed != nil && td.Completed != *completed {
			continue
		}
		out = append(out, td)
	}
	return out
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.owned(username, r))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, len(s.owned(username, r)))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id := domain.ID(mux.Vars(r)["id"])
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.userIDLocked(username)
	for _, td := range s.todos {
		if td.ID == id && td.UserID == owner {
			writeJSON(w, http.StatusOK, td)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Todo item not found")
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.nextID++
	now := domain.Timestamp{Time: time.Now().UTC()}
	td := domain.Todo{
		ID:          domain.ID(strconv.Itoa(s.nextID)),
		UserID:      s.userIDLocked(username),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.todos = append([]domain.Todo{td}, s.todos...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, td)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	username, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id := domain.ID(mux.Vars(r)["id"])
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.userIDLocked(username)
	for i := range s.todos {
		if s.todos[i].ID == id && s.todos[i].UserID == owner {
			s.todos[i].Completed = true
			s.todos[i].UpdatedAt = domain.Timestamp{Time: time.Now().UTC()}
			writeJSON(w, http.StatusOK, s.todos[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Todo item not found or not owned by user")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
