// Package controller implements the client controller: the session state
// machine and the register, login, logout, list, add and complete operations.
//
// Operations are synchronous and UI-independent. Each returns an Outcome that
// a rendering layer applies; the controller itself never draws anything.
// A Controller is safe for concurrent use.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/naveenspark/todo/internal/session"
	"github.com/naveenspark/todo/pkg/client"
	"github.com/naveenspark/todo/pkg/domain"
)

// User-facing messages.
const (
	MsgCredentialsRequired = "Username and password are required."
	MsgLoginSuccessful     = "Login successful!"

	AlertDescriptionRequired = "Please enter a todo description."
	AlertLoginToAdd          = "Please login to add todos."
	AlertLoginToComplete     = "Please login to complete todos."
	AlertSessionExpired      = "Session expired. Please login again."
	AlertAddFailed           = "Failed to add todo."
)

// Outcome is the result of one operation, ready to render.
type Outcome struct {
	Action Action
	Seq    uint64
	// Stale is set when a newer operation of the same action started before
	// this one finished. Only Mode, Username and a fresh List may be applied.
	Stale bool

	Mode     Mode
	Username string

	// List replaces the rendered list; nil leaves it unchanged. ListSeq orders
	// list updates across actions: never apply a List older than one shown.
	List    *ListState
	ListSeq uint64

	// Message goes to the inline area of the register or login form.
	Message string
	// Alert is a blocking notice.
	Alert string
	// ClearInput asks the view to empty the inputs of the acting form.
	ClearInput bool
	// Expired is set when a 401 ended the session during this operation.
	Expired bool
}

// Controller owns the session and talks to the API.
type Controller struct {
	api    *client.Client
	store  session.Store
	logger *slog.Logger
	seq    sequencer

	// mu serializes session writes with the staleness checks that guard them.
	mu        sync.Mutex
	filter    client.TodoFilter
	completed map[domain.ID]bool
}

// New returns a controller. api carries no token; the controller binds the
// persisted token per call.
func New(api *client.Client, store session.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		api:       api,
		store:     store,
		logger:    logger,
		completed: make(map[domain.ID]bool),
	}
}

func (c *Controller) session() domain.Session {
	s, err := c.store.Load()
	if err != nil {
		c.logger.Warn("load session", "error", err)
		return domain.Session{}
	}
	return s
}

func modeOf(s domain.Session) Mode {
	if s.Active() {
		return LoggedIn
	}
	return LoggedOut
}

// Mode derives the current mode from the persisted session.
func (c *Controller) Mode() Mode {
	return modeOf(c.session())
}

// Username returns the logged-in username, or "".
func (c *Controller) Username() string {
	s := c.session()
	if !s.Active() {
		return ""
	}
	return s.Username
}

// Filter returns the filter applied to list fetches.
func (c *Controller) Filter() client.TodoFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetFilter changes the filter used by subsequent fetches.
func (c *Controller) SetFilter(f client.TodoFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// Start resumes from the persisted session. A logged-in start fetches the list.
func (c *Controller) Start(ctx context.Context) Outcome {
	sess := c.session()
	if !sess.Active() {
		return Outcome{Action: ActionFetch, Mode: LoggedOut}
	}
	c.logger.Info("resuming session", "username", sess.Username)
	return c.Fetch(ctx)
}

// Register creates an account. It never changes the session.
func (c *Controller) Register(ctx context.Context, username, password string) Outcome {
	sess := c.session()
	out := Outcome{Action: ActionRegister, Mode: modeOf(sess), Username: activeName(sess)}

	creds, ok := credentials(username, password)
	if !ok {
		out.Message = MsgCredentialsRequired
		return out
	}

	out.Seq = c.seq.next(ActionRegister)
	u, err := c.api.WithToken("").Register(ctx, creds)
	if c.seq.superseded(ActionRegister, out.Seq) {
		c.markStale(&out)
		return out
	}
	if err != nil {
		c.logger.Warn("registration failed", "username", creds.Username, "error", err)
		out.Message = failureMessage("Registration", err)
		return out
	}

	name := u.Username
	if name == "" {
		name = creds.Username
	}
	c.logger.Info("registered", "username", name)
	out.Message = fmt.Sprintf("User %s registered successfully! Please login.", name)
	out.ClearInput = true
	return out
}

// Login authenticates, persists the session and fetches the list. Any failure
// clears the persisted session.
func (c *Controller) Login(ctx context.Context, username, password string) Outcome {
	prev := c.session()
	out := Outcome{Action: ActionLogin, Mode: modeOf(prev), Username: activeName(prev)}

	creds, ok := credentials(username, password)
	if !ok {
		out.Message = MsgCredentialsRequired
		return out
	}

	out.Seq = c.seq.next(ActionLogin)
	resp, err := c.api.WithToken("").Login(ctx, creds)

	c.mu.Lock()
	if c.seq.superseded(ActionLogin, out.Seq) {
		c.mu.Unlock()
		c.markStale(&out)
		return out
	}
	var sess domain.Session
	if err == nil {
		sess = resp.Session()
		if sess.Username == "" {
			sess.Username = creds.Username
		}
		if saveErr := c.store.Save(sess); saveErr != nil {
			err = fmt.Errorf("save session: %w", saveErr)
		}
	}
	if err != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Error("clear session", "error", clearErr)
		}
		c.forgetLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("login failed", "username", creds.Username, "error", err)
		out.Mode = Transition(out.Mode, EventLoginFailed)
		out.Username = ""
		out.Message = failureMessage("Login", err)
		return out
	}

	c.logger.Info("logged in", "username", sess.Username)
	out.Mode = Transition(out.Mode, EventLoginSucceeded)
	out.Username = sess.Username
	out.Message = MsgLoginSuccessful
	out.ClearInput = true
	c.applyFetch(ctx, &out, sess)
	return out
}

// Logout clears the session locally, then tells the server on a best-effort
// basis.
func (c *Controller) Logout(ctx context.Context) Outcome {
	sess := c.session()

	c.mu.Lock()
	if err := c.store.Clear(); err != nil {
		c.logger.Error("clear session", "error", err)
	}
	c.forgetLocked()
	c.mu.Unlock()

	out := Outcome{
		Action:  ActionLogout,
		Seq:     c.seq.next(ActionLogout),
		Mode:    Transition(modeOf(sess), EventLogout),
		List:    placeholder(PlaceholderLoggedOut),
		ListSeq: c.seq.next(ActionFetch),
	}

	if sess.HasToken() {
		if err := c.api.WithToken(sess.SessionToken).Logout(ctx); err != nil {
			c.logger.Info("server logout failed", "error", err)
		}
	}
	c.logger.Info("logged out", "username", sess.Username)
	return out
}

// Fetch replaces the list from the API.
func (c *Controller) Fetch(ctx context.Context) Outcome {
	sess := c.session()
	if !sess.HasToken() {
		return Outcome{
			Action:  ActionFetch,
			Mode:    Transition(modeOf(sess), EventGuardedAction),
			List:    placeholder(PlaceholderLogin),
			ListSeq: c.seq.next(ActionFetch),
		}
	}
	out := Outcome{Action: ActionFetch, Mode: LoggedIn, Username: sess.Username}
	c.applyFetch(ctx, &out, sess)
	out.Seq = out.ListSeq
	if out.List == nil && !out.Expired && !out.Stale {
		c.markStale(&out)
	}
	return out
}

// Add creates a todo, then re-fetches. The list is never edited locally.
func (c *Controller) Add(ctx context.Context, description string) Outcome {
	sess := c.session()
	desc := strings.TrimSpace(description)
	if desc == "" {
		return Outcome{Action: ActionAdd, Mode: modeOf(sess), Username: activeName(sess), Alert: AlertDescriptionRequired}
	}
	if !sess.HasToken() {
		return c.guard(ActionAdd, sess, AlertLoginToAdd)
	}

	out := Outcome{Action: ActionAdd, Seq: c.seq.next(ActionAdd), Mode: LoggedIn, Username: sess.Username}
	_, err := c.api.WithToken(sess.SessionToken).CreateTodo(ctx, desc)
	if err != nil {
		if client.IsUnauthorized(err) {
			c.expire(&out, sess)
			return out
		}
		c.logger.Error("failed to add todo", "error", err)
		if c.seq.superseded(ActionAdd, out.Seq) {
			c.markStale(&out)
			return out
		}
		out.Alert = AlertAddFailed
		return out
	}

	c.applyFetch(ctx, &out, sess)
	switch {
	case c.seq.superseded(ActionAdd, out.Seq):
		c.markStale(&out)
	case !out.Expired && !out.Stale:
		out.ClearInput = true
	}
	return out
}

// Complete marks a todo complete, then re-fetches. Todos last rendered as
// completed are refused without a call.
func (c *Controller) Complete(ctx context.Context, id domain.ID) Outcome {
	sess := c.session()
	if !sess.HasToken() {
		return c.guard(ActionComplete, sess, AlertLoginToComplete)
	}
	if c.isCompleted(id) {
		return Outcome{Action: ActionComplete, Mode: modeOf(sess), Username: activeName(sess)}
	}

	out := Outcome{Action: ActionComplete, Seq: c.seq.next(ActionComplete), Mode: LoggedIn, Username: sess.Username}
	err := c.api.WithToken(sess.SessionToken).CompleteTodo(ctx, id)
	if err != nil {
		if client.IsUnauthorized(err) {
			c.expire(&out, sess)
			return out
		}
		c.logger.Error("failed to complete todo", "id", id, "error", err)
		if c.seq.superseded(ActionComplete, out.Seq) {
			c.markStale(&out)
			return out
		}
		out.Alert = fmt.Sprintf("Failed to complete todo %s.", id)
		return out
	}

	c.applyFetch(ctx, &out, sess)
	if c.seq.superseded(ActionComplete, out.Seq) {
		c.markStale(&out)
	}
	return out
}

// Lookup fetches a single todo. It never touches the rendered list.
func (c *Controller) Lookup(ctx context.Context, id domain.ID) (*domain.Todo, Outcome) {
	sess := c.session()
	if !sess.HasToken() {
		return nil, c.guard(ActionFetch, sess, PlaceholderLogin)
	}
	out := Outcome{Action: ActionFetch, Mode: LoggedIn, Username: sess.Username}
	td, err := c.api.WithToken(sess.SessionToken).GetTodo(ctx, id)
	switch {
	case client.IsUnauthorized(err):
		c.expire(&out, sess)
		return nil, out
	case client.IsStatus(err, http.StatusNotFound):
		out.Alert = fmt.Sprintf("Todo %s not found.", id)
		return nil, out
	case err != nil:
		c.logger.Error("failed to get todo", "id", id, "error", err)
		out.Alert = fmt.Sprintf("Failed to load todo %s.", id)
		return nil, out
	}
	return td, out
}

// applyFetch runs a list fetch for sess and folds it into out. A fetch for a
// session that has since ended or been replaced is marked stale.
func (c *Controller) applyFetch(ctx context.Context, out *Outcome, sess domain.Session) {
	if !c.owns(sess) {
		c.logger.Debug("skipping fetch for ended session", "action", out.Action.String())
		c.markStale(out)
		return
	}
	seq := c.seq.next(ActionFetch)
	api := c.api.WithToken(sess.SessionToken)
	filter := c.Filter()
	filtered := filter.Description != "" || filter.Completed != nil

	var list *ListState
	todos, err := api.ListTodos(ctx, filter)
	switch {
	case client.IsUnauthorized(err):
		c.expire(out, sess)
		return
	case err != nil:
		c.logger.Error("failed to fetch todos", "error", err)
		list = placeholder(PlaceholderLoadFailed)
	default:
		list = newListState(todos, filtered)
		if n, err := api.CountTodos(ctx, client.TodoFilter{}); err == nil {
			list.Total, list.TotalKnown = n, true
		} else {
			c.logger.Debug("count todos", "error", err)
		}
	}

	out.ListSeq = seq
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq.superseded(ActionFetch, seq) {
		c.logger.Debug("discarding superseded fetch", "seq", seq)
		return
	}
	if !c.owns(sess) {
		c.logger.Debug("discarding fetch for ended session", "seq", seq)
		c.markStale(out)
		return
	}
	if len(list.Items) > 0 || list.Placeholder != PlaceholderLoadFailed {
		c.rememberLocked(list)
	}
	out.List = list
}

// expire handles a 401: the session used for the call is cleared, unless a
// newer login already replaced it.
func (c *Controller) expire(out *Outcome, sess domain.Session) {
	var listSeq uint64

	c.mu.Lock()
	current := c.owns(sess)
	if current {
		listSeq = c.seq.next(ActionFetch)
		if err := c.store.Clear(); err != nil {
			c.logger.Error("clear session", "error", err)
		}
		c.forgetLocked()
	}
	c.mu.Unlock()

	if !current {
		c.markStale(out)
		return
	}

	c.logger.Warn("session expired", "username", sess.Username, "action", out.Action.String())
	out.Mode = Transition(LoggedIn, EventUnauthorized)
	out.Username = ""
	out.Alert = AlertSessionExpired
	out.List = placeholder(PlaceholderLoggedOut)
	out.ListSeq = listSeq
	out.Expired = true
	out.ClearInput = false
}

// owns reports whether sess is still the stored session.
func (c *Controller) owns(sess domain.Session) bool {
	cur := c.session()
	return cur.HasToken() && cur.SessionToken == sess.SessionToken
}

// markStale flags out as superseded and reports the session as it is now.
func (c *Controller) markStale(out *Outcome) {
	cur := c.session()
	out.Stale = true
	out.Mode, out.Username = modeOf(cur), activeName(cur)
}

func (c *Controller) guard(a Action, sess domain.Session, alert string) Outcome {
	return Outcome{
		Action: a,
		Mode:   Transition(modeOf(sess), EventGuardedAction),
		Alert:  alert,
	}
}

func (c *Controller) isCompleted(id domain.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[id]
}

func (c *Controller) rememberLocked(l *ListState) {
	c.completed = make(map[domain.ID]bool, len(l.Items))
	for _, it := range l.Items {
		if it.Todo.Completed {
			c.completed[it.Todo.ID] = true
		}
	}
}

func (c *Controller) forgetLocked() {
	c.completed = make(map[domain.ID]bool)
}

func activeName(s domain.Session) string {
	if !s.Active() {
		return ""
	}
	return s.Username
}

func credentials(username, password string) (domain.Credentials, bool) {
	creds := domain.Credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}
	return creds, creds.Username != "" && creds.Password != ""
}

// failureMessage renders "<op> failed: <status> <detail>" for server
// rejections and "<op> error: <cause>" for transport or decode failures.
func failureMessage(op string, err error) string {
	if httpErr := client.AsHTTPError(err); httpErr != nil {
		detail := httpErr.Message
		if detail == "" {
			detail = "Unknown error"
		}
		return fmt.Sprintf("%s failed: %d %s", op, httpErr.StatusCode, detail)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Sprintf("%s error: %v", op, urlErr.Err)
	}
	return fmt.Sprintf("%s error: %v", op, err)
}
