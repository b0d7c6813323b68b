package main

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// defaultSessionTTL applies when http.session_ttl is not set.
const defaultSessionTTL = 24 * time.Hour

// hashPassword takes a plaintext password and returns a bcrypt hash.  If
// hashing fails the program panics because it is a programmer error.
func hashPassword(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// checkPasswordHash verifies a plaintext password against a stored bcrypt
// hash.  It returns nil if the password matches.
func checkPasswordHash(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Session is a logged-in API client.  Sessions live in memory only, so a
// restart of the board service logs everybody out.
type Session struct {
	Username string
	Expires  time.Time
}

func (s Session) expired(now time.Time) bool {
	return !now.Before(s.Expires)
}

// Sessions is the session store of the HTTP API.  Every session lasts ttl
// from login; there is no sliding renewal.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	byID map[string]Session
}

// NewSessions returns an empty store issuing sessions valid for ttl.  A
// non-positive ttl selects 24h.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{ttl: ttl, now: time.Now, byID: make(map[string]Session)}
}

// Login opens a session for username and returns its cookie value.
func (ss *Sessions) Login(username string) (string, Session, error) {
	id, err := sessionID()
	if err != nil {
		return "", Session{}, err
	}
	s := Session{Username: username, Expires: ss.now().Add(ss.ttl)}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.byID[id] = s
	return id, s, nil
}

// Lookup returns the session behind id.  An expired session is dropped on
// sight.
func (ss *Sessions) Lookup(id string) (Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.byID[id]
	if !ok {
		return Session{}, false
	}
	if s.expired(ss.now()) {
		delete(ss.byID, id)
		return Session{}, false
	}
	return s, true
}

// Logout ends one session.
func (ss *Sessions) Logout(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.byID, id)
}

// Revoke ends every session of username and reports how many were open.
// Used when an account is deleted or its password changes.
func (ss *Sessions) Revoke(username string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for id, s := range ss.byID {
		if s.Username == username {
			delete(ss.byID, id)
			n++
		}
	}
	return n
}

// Purge drops expired sessions and returns the number still open.
func (ss *Sessions) Purge() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	now := ss.now()
	for id, s := range ss.byID {
		if s.expired(now) {
			delete(ss.byID, id)
		}
	}
	return len(ss.byID)
}

// sessionID returns 32 random bytes, URL-safe base64 encoded.
func sessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
