package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// defaultAdmin is the account created with a fresh configuration.  It
// cannot be deleted through the API.
const defaultAdmin = "admin"

// Server exposes the board over HTTP: status, display control and user
// management.
type Server struct {
	cfgMgr   *ConfigManager
	sessions *Sessions
	board    *Board
	runner   *Runner
	logger   *EventLogger
}

// NewServer wires the API to an already constructed board.  runner may be nil
// when the board is not being polled (tests).
func NewServer(cfgMgr *ConfigManager, board *Board, runner *Runner, logger *EventLogger) *Server {
	return &Server{
		cfgMgr:   cfgMgr,
		sessions: NewSessions(cfgMgr.Get().HTTP.SessionTTL),
		board:    board,
		runner:   runner,
		logger:   logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/message", s.withAuth(s.handleMessage))
	mux.HandleFunc("/api/background", s.withAuth(s.handleBackground))
	mux.HandleFunc("/api/logs", s.withAuth(s.handleLogs))
	mux.HandleFunc("/api/users", s.withAuth(s.handleUsers))
	mux.HandleFunc("/api/users/", s.withAuth(s.handleUserByName))
	mux.HandleFunc("/api/test/trigger", s.withAuth(s.handleTestTrigger))
	return mux
}

// Start serves the API until ctx is cancelled.  TLS is used when a
// certificate and key are configured.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfgMgr.Get()
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	go func() {
		purge := time.NewTicker(time.Hour)
		defer purge.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Warn("http shutdown", "err", err)
				}
				return
			case <-purge.C:
				slog.Debug("sessions purged", "open", s.sessions.Purge())
			}
		}
	}()

	var err error
	if cfg.HTTP.CertFile != "" && cfg.HTTP.KeyFile != "" {
		slog.Info("listening", "addr", cfg.HTTP.Addr, "tls", true)
		err = srv.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
	} else {
		slog.Info("listening", "addr", cfg.HTTP.Addr, "tls", false)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// withAuth wraps handlers that require a valid session.  If the request
// carries a valid "session" cookie the handler is called with the user;
// otherwise it responds with 401.
func (s *Server) withAuth(handler func(http.ResponseWriter, *http.Request, User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		sess, ok := s.sessions.Lookup(cookie.Value)
		if !ok {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		user, _ := s.cfgMgr.FindUser(sess.Username)
		if user.Username == "" {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		handler(w, r, user)
	}
}

func (s *Server) secureCookies() bool {
	cfg := s.cfgMgr.Get()
	return cfg.HTTP.CertFile != "" && cfg.HTTP.KeyFile != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin authenticates a user and sets a session cookie.  Expected JSON:
// {"username":"...","password":"..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	user, err := s.cfgMgr.Authenticate(creds.Username, creds.Password)
	if err != nil {
		slog.Info("login rejected", "user", creds.Username, "remote", r.RemoteAddr)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	sessID, sess, err := s.sessions.Login(user.Username)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.Expires,
	})
	s.logger.Log("login %s", user.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout deletes the session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if cookie, err := r.Cookie("session"); err == nil {
		s.sessions.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(),
		Expires:  time.Unix(0, 0),
	})
	s.logger.Log("logout")
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns the board snapshot plus the poll failure count.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := struct {
		BoardStatus
		PollFailures uint64 `json:"poll_failures"`
	}{BoardStatus: s.board.Status()}
	if s.runner != nil {
		resp.PollFailures = s.runner.Failures()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMessage writes text on the LCD.  Body JSON: {"text":"Hello","line":0}
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
		Line int    `json:"line"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.board.WriteMessage(req.Text, req.Line); err != nil {
		if errors.Is(err, ErrInvalidLine) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("display write", "err", err)
		http.Error(w, "display error", http.StatusBadGateway)
		return
	}
	s.logger.Log("message %q on line %d by %s", req.Text, req.Line, user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleBackground changes the LCD backlight.  Body JSON: {"color":"red"}.
// Unknown colours select white.
func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.board.ChangeBackground(req.Color); err != nil {
		slog.Error("display color", "err", err)
		http.Error(w, "display error", http.StatusBadGateway)
		return
	}
	s.logger.Log("background %s by %s", ParseColor(req.Color), user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleLogs returns the event log.  Admins only.  Accepts optional query
// parameter `lines=n` to limit the number of lines returned.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	limit := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	lines, err := s.logger.Tail(limit)
	if err != nil {
		http.Error(w, "log not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// handleUsers handles GET and POST on /api/users.  Only admins may manage
// users.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfgMgr.Get()
		// Do not expose password hashes to clients
		type userView struct {
			Username string `json:"username"`
			Admin    bool   `json:"admin"`
		}
		users := make([]userView, len(cfg.Users))
		for i, u := range cfg.Users {
			users[i] = userView{Username: u.Username, Admin: u.Admin}
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Admin    bool   `json:"admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			http.Error(w, "missing username or password", http.StatusBadRequest)
			return
		}
		errExists := errors.New("exists")
		err := s.cfgMgr.Update(func(c *Config) error {
			for _, u := range c.Users {
				if u.Username == req.Username {
					return errExists
				}
			}
			c.Users = append(c.Users, User{Username: req.Username, PasswordHash: hashPassword(req.Password), Admin: req.Admin})
			return nil
		})
		if err != nil {
			switch {
			case errors.Is(err, errExists):
				http.Error(w, "user exists", http.StatusConflict)
			default:
				slog.Error("save user", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		s.logger.Log("create user %s by %s", req.Username, user.Username)
		w.WriteHeader(http.StatusCreated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUserByName handles PUT and DELETE on /api/users/{username}.  PUT
// accepts {"password":"...","admin":bool}, both optional.  Changing the
// password ends the user's open sessions.  Admins only.
func (s *Server) handleUserByName(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if username == "" || strings.Contains(username, "/") {
		http.NotFound(w, r)
		return
	}
	errNotFound := errors.New("not found")

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Password *string `json:"password,omitempty"`
			Admin    *bool   `json:"admin,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Password != nil && *req.Password == "" {
			http.Error(w, "empty password", http.StatusBadRequest)
			return
		}
		err := s.cfgMgr.Update(func(c *Config) error {
			for i, u := range c.Users {
				if u.Username != username {
					continue
				}
				if req.Password != nil {
					c.Users[i].PasswordHash = hashPassword(*req.Password)
				}
				if req.Admin != nil {
					c.Users[i].Admin = *req.Admin
				}
				return nil
			}
			return errNotFound
		})
		if !s.userUpdateOK(w, err, errNotFound) {
			return
		}
		if req.Password != nil {
			s.sessions.Revoke(username)
		}
		s.logger.Log("update user %s by %s", username, user.Username)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if username == defaultAdmin {
			http.Error(w, "cannot delete default admin", http.StatusBadRequest)
			return
		}
		err := s.cfgMgr.Update(func(c *Config) error {
			for i, u := range c.Users {
				if u.Username == username {
					c.Users = append(c.Users[:i], c.Users[i+1:]...)
					return nil
				}
			}
			return errNotFound
		})
		if !s.userUpdateOK(w, err, errNotFound) {
			return
		}
		s.sessions.Revoke(username)
		s.logger.Log("delete user %s by %s", username, user.Username)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// userUpdateOK maps the result of a user change to an HTTP error.  It
// reports whether err was nil.
func (s *Server) userUpdateOK(w http.ResponseWriter, err, errNotFound error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, errNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrNoAdmin):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("save user", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return false
}

// handleTestTrigger raises a PresenceDetected event without touching the
// sensor, so that the configured alert handlers can be checked end to end.
// The edge monitor state is left as it is.  Admins only.
func (s *Server) handleTestTrigger(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.logger.Log("test trigger by %s", user.Username)
	ev := s.board.RaisePresence()
	writeJSON(w, http.StatusAccepted, ev)
}
