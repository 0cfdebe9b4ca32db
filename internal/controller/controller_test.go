package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/todo/internal/apitest"
	"github.com/naveenspark/todo/internal/session"
	"github.com/naveenspark/todo/pkg/client"
	"github.com/naveenspark/todo/pkg/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestController(t *testing.T) (*Controller, *apitest.Server, *session.MemoryStore) {
	t.Helper()
	srv := apitest.New(t)
	store := session.NewMemoryStore(domain.Session{})
	api := client.New(srv.URL, "", client.WithLogger(quiet))
	return New(api, store, quiet), srv, store
}

// loggedIn returns a controller whose store holds a valid session for alice.
func loggedIn(t *testing.T) (*Controller, *apitest.Server, *session.MemoryStore) {
	t.Helper()
	c, srv, store := newTestController(t)
	srv.AddUser("alice", "pw")
	srv.SetToken("t1", "alice")
	require.NoError(t, store.Save(domain.Session{SessionToken: "t1", UserID: "u-alice", Username: "alice"}))
	return c, srv, store
}

func assertLoggedOut(t *testing.T, store session.Store, out Outcome) {
	t.Helper()
	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.Session{}, s, "all session fields cleared")
	assert.Equal(t, LoggedOut, out.Mode)
	assert.Empty(t, out.Username)
}

func TestRegisterLogin_EmptyCredentialsMakeNoCall(t *testing.T) {
	c, srv, _ := newTestController(t)
	ctx := context.Background()

	for _, in := range [][2]string{{"", "pw"}, {"alice", ""}, {"  ", "  "}} {
		out := c.Register(ctx, in[0], in[1])
		assert.Equal(t, MsgCredentialsRequired, out.Message)
		out = c.Login(ctx, in[0], in[1])
		assert.Equal(t, MsgCredentialsRequired, out.Message)
		assert.Equal(t, LoggedOut, out.Mode)
	}
	assert.Empty(t, srv.Requests())
}

func TestRegister(t *testing.T) {
	c, srv, store := newTestController(t)
	ctx := context.Background()

	out := c.Register(ctx, " bob ", "pw")
	assert.Equal(t, "User bob registered successfully! Please login.", out.Message)
	assert.True(t, out.ClearInput)
	assert.Equal(t, LoggedOut, out.Mode)
	assert.Equal(t, 1, srv.Count(apitest.RouteRegister))

	s, err := store.Load()
	require.NoError(t, err)
	assert.False(t, s.HasToken(), "register must not log in")

	out = c.Register(ctx, "bob", "pw")
	assert.Equal(t, "Registration failed: 409 Username already exists", out.Message)
	assert.False(t, out.ClearInput)
}

func TestRegister_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(client.New(srv.URL, "", client.WithLogger(quiet)), session.NewMemoryStore(domain.Session{}), quiet)

	out := c.Register(context.Background(), "bob", "pw")
	assert.Contains(t, out.Message, "Registration error: ")
}

func TestLogin_PersistsSessionAndFetches(t *testing.T) {
	var lastAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_token":"t1","user_id":"u1","username":"alice"}`)) //nolint:errcheck
	})
	mux.HandleFunc("/api/todos", func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`)) //nolint:errcheck
	})
	mux.HandleFunc("/api/todos/count", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`0`)) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := session.NewMemoryStore(domain.Session{})
	c := New(client.New(srv.URL, "", client.WithLogger(quiet)), store, quiet)

	out := c.Login(context.Background(), "alice", "pw")
	assert.Equal(t, MsgLoginSuccessful, out.Message)
	assert.True(t, out.ClearInput)
	assert.Equal(t, LoggedIn, out.Mode)
	assert.Equal(t, "alice", out.Username)

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.Session{SessionToken: "t1", UserID: "u1", Username: "alice"}, s)
	assert.Equal(t, "Bearer t1", lastAuth)

	require.NotNil(t, out.List)
	assert.Equal(t, PlaceholderEmpty, out.List.Placeholder)
	assert.Empty(t, out.List.Items)
}

func TestLogin_FailureClearsSession(t *testing.T) {
	c, srv, store := loggedIn(t)
	ctx := context.Background()

	out := c.Login(ctx, "alice", "wrong")
	assert.Equal(t, "Login failed: 401 Invalid credentials", out.Message)
	assertLoggedOut(t, store, out)

	out = c.Login(ctx, "nobody", "pw")
	assert.Equal(t, "Login failed: 404 User not found", out.Message)
	assert.Equal(t, 0, srv.Count(apitest.RouteList))
}

func TestStart(t *testing.T) {
	t.Run("logged out", func(t *testing.T) {
		c, srv, _ := newTestController(t)
		out := c.Start(context.Background())
		assert.Equal(t, LoggedOut, out.Mode)
		assert.Nil(t, out.List)
		assert.Empty(t, srv.Requests())
	})

	t.Run("resumes and fetches", func(t *testing.T) {
		c, srv, _ := loggedIn(t)
		srv.Seed("alice", domain.Todo{Description: "x"})
		out := c.Start(context.Background())
		assert.Equal(t, LoggedIn, out.Mode)
		assert.Equal(t, "alice", out.Username)
		require.NotNil(t, out.List)
		assert.Len(t, out.List.Items, 1)
		assert.Equal(t, 1, srv.Count(apitest.RouteList))
	})
}

func TestFetch_NoToken(t *testing.T) {
	c, srv, _ := newTestController(t)
	out := c.Fetch(context.Background())
	assert.Equal(t, LoggedOut, out.Mode)
	require.NotNil(t, out.List)
	assert.Equal(t, PlaceholderLogin, out.List.Placeholder)
	assert.Empty(t, srv.Requests())
}

func TestFetch_Items(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Seed("alice",
		domain.Todo{ID: "1", Description: "x"},
		domain.Todo{ID: "2", Description: "y", Completed: true},
	)
	ctx := context.Background()

	out := c.Fetch(ctx)
	require.NotNil(t, out.List)
	require.Len(t, out.List.Items, 2)
	assert.Equal(t, "x", out.List.Items[0].Todo.Description)
	assert.True(t, out.List.Items[0].Enabled)
	assert.Equal(t, ControlComplete, out.List.Items[0].Control)
	assert.False(t, out.List.Items[1].Enabled)
	assert.Equal(t, ControlCompleted, out.List.Items[1].Control)
	assert.True(t, out.List.TotalKnown)
	assert.EqualValues(t, 2, out.List.Total)
	assert.Equal(t, 1, out.List.Done())

	req, ok := srv.Last(apitest.RouteList)
	require.True(t, ok)
	assert.Equal(t, "Bearer t1", req.Authorization)
	assert.NotEmpty(t, req.RequestID)

	out = c.Complete(ctx, out.List.Items[0].Todo.ID)
	req, ok = srv.Last(apitest.RouteComplete)
	require.True(t, ok)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/todos/1/complete", req.Path)
	require.NotNil(t, out.List)
	assert.Equal(t, 2, out.List.Done())
}

func TestFetch_Failure(t *testing.T) {
	c, srv, store := loggedIn(t)
	srv.Fail(apitest.RouteList, http.StatusInternalServerError)

	out := c.Fetch(context.Background())
	require.NotNil(t, out.List)
	assert.Equal(t, PlaceholderLoadFailed, out.List.Placeholder)
	assert.Equal(t, LoggedIn, out.Mode)
	assert.Empty(t, out.Alert)

	s, err := store.Load()
	require.NoError(t, err)
	assert.True(t, s.Active())
}

func TestFetch_CountFailureIsIgnored(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Seed("alice", domain.Todo{Description: "x"})
	srv.Fail(apitest.RouteCount, http.StatusInternalServerError)

	out := c.Fetch(context.Background())
	require.NotNil(t, out.List)
	assert.Len(t, out.List.Items, 1)
	assert.False(t, out.List.TotalKnown)
}

func TestFetch_Filter(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Seed("alice",
		domain.Todo{Description: "buy milk"},
		domain.Todo{Description: "walk dog", Completed: true},
	)
	open := false
	c.SetFilter(client.TodoFilter{Completed: &open})

	out := c.Fetch(context.Background())
	require.NotNil(t, out.List)
	require.Len(t, out.List.Items, 1)
	assert.Equal(t, "buy milk", out.List.Items[0].Todo.Description)
	assert.EqualValues(t, 2, out.List.Total)

	c.SetFilter(client.TodoFilter{Description: "nothing"})
	out = c.Fetch(context.Background())
	assert.Equal(t, PlaceholderNoMatch, out.List.Placeholder)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Controller) Outcome
	}{
		{"list", func(c *Controller) Outcome { return c.Fetch(context.Background()) }},
		{"add", func(c *Controller) Outcome { return c.Add(context.Background(), "x") }},
		{"complete", func(c *Controller) Outcome { return c.Complete(context.Background(), "1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv, store := loggedIn(t)
			srv.Seed("alice", domain.Todo{ID: "1", Description: "x"})
			srv.RevokeAll()

			out := tt.run(c)
			assertLoggedOut(t, store, out)
			assert.True(t, out.Expired)
			assert.False(t, out.Stale)
			assert.Equal(t, AlertSessionExpired, out.Alert)
		})
	}
}

func TestAdd(t *testing.T) {
	c, srv, _ := loggedIn(t)
	ctx := context.Background()

	out := c.Add(ctx, "   ")
	assert.Equal(t, AlertDescriptionRequired, out.Alert)
	assert.Empty(t, srv.Requests())

	before := srv.Count(apitest.RouteList)
	out = c.Add(ctx, "  buy milk ")
	assert.Empty(t, out.Alert)
	assert.True(t, out.ClearInput)
	assert.Equal(t, before+1, srv.Count(apitest.RouteList))
	require.NotNil(t, out.List)
	require.Len(t, out.List.Items, 1)
	assert.Equal(t, "buy milk", out.List.Items[0].Todo.Description)
}

func TestAdd_Failure(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Fail(apitest.RouteCreate, http.StatusInternalServerError)

	out := c.Add(context.Background(), "x")
	assert.Equal(t, AlertAddFailed, out.Alert)
	assert.False(t, out.ClearInput)
	assert.Nil(t, out.List)
	assert.Equal(t, 0, srv.Count(apitest.RouteList))
}

func TestGuardedActionsWithoutToken(t *testing.T) {
	c, srv, _ := newTestController(t)
	ctx := context.Background()

	out := c.Add(ctx, "x")
	assert.Equal(t, AlertLoginToAdd, out.Alert)
	assert.Equal(t, LoggedOut, out.Mode)

	out = c.Complete(ctx, "1")
	assert.Equal(t, AlertLoginToComplete, out.Alert)
	assert.Equal(t, LoggedOut, out.Mode)

	assert.Empty(t, srv.Requests())
}

func TestComplete_Failure(t *testing.T) {
	c, srv, _ := loggedIn(t)
	out := c.Complete(context.Background(), "42")
	assert.Equal(t, "Failed to complete todo 42.", out.Alert)
	assert.Equal(t, 1, srv.Count(apitest.RouteComplete))
}

func TestComplete_RefusesCompletedTodo(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Seed("alice", domain.Todo{ID: "2", Description: "y", Completed: true})
	ctx := context.Background()

	c.Fetch(ctx)
	out := c.Complete(ctx, "2")
	assert.Empty(t, out.Alert)
	assert.Equal(t, 0, srv.Count(apitest.RouteComplete))
}

func TestLogout(t *testing.T) {
	c, srv, store := loggedIn(t)

	out := c.Logout(context.Background())
	assertLoggedOut(t, store, out)
	require.NotNil(t, out.List)
	assert.Equal(t, PlaceholderLoggedOut, out.List.Placeholder)

	req, ok := srv.Last(apitest.RouteLogout)
	require.True(t, ok)
	assert.Equal(t, "Bearer t1", req.Authorization)
}

func TestLogout_ServerFailureIsSilent(t *testing.T) {
	c, srv, store := loggedIn(t)
	srv.Fail(apitest.RouteLogout, http.StatusInternalServerError)

	out := c.Logout(context.Background())
	assertLoggedOut(t, store, out)
	assert.Empty(t, out.Alert)
	assert.Empty(t, out.Message)
}

func TestFetch_SupersededResponseIsDiscarded(t *testing.T) {
	c, srv, _ := loggedIn(t)
	srv.Seed("alice", domain.Todo{Description: "x"})
	gate := srv.Hold(apitest.RouteList)

	first := make(chan Outcome, 1)
	go func() { first <- c.Fetch(context.Background()) }()

	select {
	case <-gate.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch never reached the server")
	}

	second := c.Fetch(context.Background())
	require.NotNil(t, second.List)
	assert.False(t, second.Stale)

	gate.Release()
	var old Outcome
	select {
	case old = <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch never returned")
	}
	assert.True(t, old.Stale)
	assert.Nil(t, old.List)
	assert.Less(t, old.ListSeq, second.ListSeq)
}

func TestUnauthorized_AfterNewLoginIsStale(t *testing.T) {
	c, srv, store := loggedIn(t)
	gate := srv.Hold(apitest.RouteList)

	first := make(chan Outcome, 1)
	go func() { first <- c.Fetch(context.Background()) }()
	<-gate.Arrived()

	// A fresh login replaces the session while the old fetch is parked.
	srv.RevokeAll()
	out := c.Login(context.Background(), "alice", "pw")
	require.Equal(t, LoggedIn, out.Mode)

	gate.Release()
	old := <-first
	assert.True(t, old.Stale)
	assert.Empty(t, old.Alert)

	s, err := store.Load()
	require.NoError(t, err)
	assert.True(t, s.Active(), "stale 401 must not clear the new session")
}

func waitArrived(t *testing.T, g *apitest.Gate) {
	t.Helper()
	select {
	case <-g.Arrived():
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
}

func receive(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("operation never returned")
		return Outcome{}
	}
}

func TestLogoutDuringMutationSkipsRefetch(t *testing.T) {
	tests := []struct {
		name  string
		route string
		run   func(c *Controller) Outcome
	}{
		{"add", apitest.RouteCreate, func(c *Controller) Outcome {
			return c.Add(context.Background(), "late")
		}},
		{"complete", apitest.RouteComplete, func(c *Controller) Outcome {
			return c.Complete(context.Background(), "1")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv, store := loggedIn(t)
			srv.Seed("alice", domain.Todo{ID: "1", Description: "x"})
			// The server keeps the bearer token valid after a failed logout.
			srv.Fail(apitest.RouteLogout, http.StatusInternalServerError)
			gate := srv.Hold(tt.route)

			done := make(chan Outcome, 1)
			go func() { done <- tt.run(c) }()
			waitArrived(t, gate)

			logout := c.Logout(context.Background())
			require.NotNil(t, logout.List)
			assert.Equal(t, PlaceholderLoggedOut, logout.List.Placeholder)

			gate.Release()
			out := receive(t, done)
			assert.True(t, out.Stale)
			assert.Nil(t, out.List)
			assert.False(t, out.ClearInput)
			assert.Empty(t, out.Alert)
			assertLoggedOut(t, store, out)
			assert.Equal(t, 0, srv.Count(apitest.RouteList), "no list fetch with the ended session")
		})
	}
}

func TestUnauthorized_LateResponseKeepsNewLoginList(t *testing.T) {
	c, srv, store := loggedIn(t)
	srv.Seed("alice", domain.Todo{Description: "x"})
	ctx := context.Background()

	oldGate := srv.Hold(apitest.RouteList)
	oldDone := make(chan Outcome, 1)
	go func() { oldDone <- c.Fetch(ctx) }()
	waitArrived(t, oldGate)

	srv.RevokeAll()
	newGate := srv.Hold(apitest.RouteList)
	loginDone := make(chan Outcome, 1)
	go func() { loginDone <- c.Login(ctx, "alice", "pw") }()
	waitArrived(t, newGate)

	oldGate.Release()
	old := receive(t, oldDone)
	assert.True(t, old.Stale)
	assert.False(t, old.Expired)

	newGate.Release()
	login := receive(t, loginDone)
	assert.False(t, login.Stale)
	assert.Equal(t, LoggedIn, login.Mode)
	require.NotNil(t, login.List)
	assert.Len(t, login.List.Items, 1)

	s, err := store.Load()
	require.NoError(t, err)
	assert.True(t, s.Active())
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&client.HTTPError{StatusCode: 409, Message: "Username already exists"}, "Registration failed: 409 Username already exists"},
		{&client.HTTPError{StatusCode: 502}, "Registration failed: 502 Unknown error"},
		{io.ErrUnexpectedEOF, "Registration error: unexpected EOF"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureMessage("Registration", tt.err))
	}
}

func TestLookup(t *testing.T) {
	c, srv, store := loggedIn(t)
	srv.Seed("alice", domain.Todo{ID: "7", Description: "x"})
	ctx := context.Background()

	td, out := c.Lookup(ctx, "7")
	require.NotNil(t, td)
	assert.Equal(t, "x", td.Description)
	assert.Empty(t, out.Alert)
	assert.Nil(t, out.List)

	td, out = c.Lookup(ctx, "8")
	assert.Nil(t, td)
	assert.Equal(t, "Todo 8 not found.", out.Alert)

	srv.RevokeAll()
	_, out = c.Lookup(ctx, "7")
	assert.True(t, out.Expired)
	assertLoggedOut(t, store, out)

	_, out = c.Lookup(ctx, "7")
	assert.Equal(t, PlaceholderLogin, out.Alert)
}
