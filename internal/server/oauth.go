package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/coverx/internal/shared"
	"golang.org/x/oauth2"
)

// stateTTL is how long an issued login state stays valid.
const stateTTL = 10 * time.Minute

// Authorizer builds the provider's consent URL and trades authorization codes for tokens.
type Authorizer interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// OAuthHandler serves /login and /callback for the authorization code flow.
// Implements the Handler interface for registration with a Router.
//
// Created with [NewOAuthHandler] it accepts exactly one callback for a fixed state and
// publishes the token on [OAuthHandler.Result]; the CLI uses this. Created with
// [NewLoginHandler] it issues a fresh state per /login and answers each callback with
// the token as JSON.
type OAuthHandler struct {
	auth    Authorizer
	oneShot bool
	now     shared.Clock

	mu     sync.Mutex
	states map[string]time.Time
	done   bool

	resultChan chan OAuthResult
	once       sync.Once
}

// NewOAuthHandler creates a single-use handler bound to state.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(auth Authorizer, state string) *OAuthHandler {
	h := newOAuthHandler(auth, true)
	h.states[state] = h.now().Add(stateTTL)
	return h
}

// NewLoginHandler creates a reusable handler for a long-running server.
func NewLoginHandler(auth Authorizer) *OAuthHandler {
	return newOAuthHandler(auth, false)
}

func newOAuthHandler(auth Authorizer, oneShot bool) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		oneShot:    oneShot,
		now:        shared.SystemClock,
		states:     make(map[string]time.Time),
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// AuthURL returns the consent URL for a state accepted by this handler.
func (h *OAuthHandler) AuthURL() string {
	return h.auth.GetAuthURL(h.issueState())
}

func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.AuthURL(), http.StatusFound)
}

// issueState returns the bound state of a single-use handler, or a new one.
func (h *OAuthHandler) issueState() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if h.oneShot {
		for state := range h.states {
			return state
		}
	}

	for state, expires := range h.states {
		if now.After(expires) {
			delete(h.states, state)
		}
	}
	state := shared.GenerateID()
	h.states[state] = now.Add(stateTTL)
	return state
}

// consumeState reports whether state was issued and unexpired, and invalidates it.
func (h *OAuthHandler) consumeState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	expires, ok := h.states[state]
	if !ok {
		return false
	}
	if !h.oneShot {
		delete(h.states, state)
	}
	return h.now().Before(expires)
}

// callback validates the state parameter, exchanges the authorization code for a token and
// reports the result.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.oneShot {
		h.mu.Lock()
		if h.done {
			h.mu.Unlock()
			http.Error(w, "Callback already processed", http.StatusBadRequest)
			return
		}
		h.done = true
		h.mu.Unlock()
	}

	if !h.consumeState(r.URL.Query().Get("state")) {
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, errParam, errDesc))
		return
	}

	token, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusBadGateway, fmt.Errorf("token exchange failed: %w", err))
		return
	}

	if !h.oneShot {
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  token.AccessToken,
			TokenType:    token.TokenType,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		})
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, err error) {
	if h.oneShot {
		h.Send(OAuthResult{err: err})
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
