// Package backendtest runs an in-memory stand-in for the content backend
// so components can be exercised over real HTTP. Responses use the flat
// record shape; Override swaps any route for a custom handler.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Prefix is the API prefix the fake serves under.
const Prefix = "/api"

// Call is one recorded request.
type Call struct {
	Method string
	Path   string // Without Prefix
	Query  url.Values
	Body   []byte
	Auth   string
}

type user struct {
	ID       int64
	Password string
	Fields   map[string]any
}

type post struct {
	ID        int64
	Content   string
	AuthorID  int64
	ImageID   int64
	Likes     int
	Comments  int
	LikedBy   map[int64]bool
	CreatedAt time.Time
}

type comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	Content   string
	CreatedAt time.Time
}

type file struct {
	ID   int64
	Name string
	URL  string
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	overrides map[string]http.HandlerFunc
	nextID    int64
	clock     time.Time
	users     map[int64]*user
	tokens    map[string]int64
	posts     map[int64]*post
	comments  map[int64]*comment
	files     map[int64]*file

	// identityImages is a JSON field, echoed as stored unless populated.
	populateIdentity bool
}

// New starts a fake backend. It is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		overrides: make(map[string]http.HandlerFunc),
		clock:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:     make(map[int64]*user),
		tokens:    make(map[string]int64),
		posts:     make(map[int64]*post),
		comments:  make(map[int64]*comment),
		files:     make(map[int64]*file),
	}

	r := chi.NewRouter()
	r.Route(Prefix, func(r chi.Router) {
		s.route(r, http.MethodPost, "/auth/local/register", false, s.register)
		s.route(r, http.MethodPost, "/auth/local", false, s.login)

		s.route(r, http.MethodGet, "/users/me", true, s.me)
		s.route(r, http.MethodGet, "/users", true, s.listUsers)
		s.route(r, http.MethodGet, "/users/{id}", true, s.getUser)
		s.route(r, http.MethodPut, "/users/{id}", true, s.updateUser)

		s.route(r, http.MethodGet, "/posts", true, s.listPosts)
		s.route(r, http.MethodPost, "/posts", true, s.createPost)
		s.route(r, http.MethodGet, "/posts/{id}", true, s.getPost)
		s.route(r, http.MethodDelete, "/posts/{id}", true, s.deletePost)
		s.route(r, http.MethodPost, "/posts/{id}/like", true, s.likePost)

		s.route(r, http.MethodGet, "/comments", true, s.listComments)
		s.route(r, http.MethodPost, "/comments", true, s.createComment)
		s.route(r, http.MethodGet, "/comments/{id}", true, s.getComment)

		s.route(r, http.MethodPost, "/upload", true, s.upload)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// PopulateIdentityImages makes user responses expand stored identity image
// ids into file objects.
func (s *Server) PopulateIdentityImages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.populateIdentity = true
}

// Override replaces the handler of a route, e.g. Override("GET", "/users/me", h).
// Overridden routes are still recorded and skip the auth check.
func (s *Server) Override(method, pattern string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+pattern] = h
}

// Fail makes a route answer with status and a backend error envelope.
func (s *Server) Fail(method, pattern string, status int, message string) {
	s.Override(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, status, message)
	})
}

// Restore removes an override.
func (s *Server) Restore(method, pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, method+" "+pattern)
}

// Calls returns every recorded request in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded requests for one method and path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// SeedUser creates an account and returns its id and a valid token.
func (s *Server) SeedUser(username, email, password string, fields map[string]any) (int64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUser(username, email, password)
	for k, v := range fields {
		u.Fields[k] = v
	}
	return u.ID, s.issueToken(u.ID)
}

// SeedPost creates a post and returns its id.
func (s *Server) SeedPost(authorID int64, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &post{ID: s.id(), Content: content, AuthorID: authorID, LikedBy: map[int64]bool{}, CreatedAt: s.tick()}
	s.posts[p.ID] = p
	return p.ID
}

// SeedComment adds a comment to a post and returns its id.
func (s *Server) SeedComment(postID, authorID int64, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &comment{ID: s.id(), PostID: postID, AuthorID: authorID, Content: content, CreatedAt: s.tick()}
	s.comments[c.ID] = c
	return c.ID
}

// PostLikes reports the stored like count of a post.
func (s *Server) PostLikes(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		return p.Likes
	}
	return -1
}

// HasPost reports whether a post still exists.
func (s *Server) HasPost(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.posts[id]
	return ok
}

// UserField returns a stored profile field.
func (s *Server) UserField(id int64, key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u.Fields[key]
	}
	return nil
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *Server) route(r chi.Router, method, pattern string, auth bool, h func(w http.ResponseWriter, r *http.Request, caller int64)) {
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: req.Method,
			Path:   strings.TrimPrefix(req.URL.Path, Prefix),
			Query:  req.URL.Query(),
			Body:   body,
			Auth:   req.Header.Get("Authorization"),
		})
		override := s.overrides[method+" "+pattern]
		s.mu.Unlock()

		if override != nil {
			override(w, req)
			return
		}

		var caller int64
		if auth {
			token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			s.mu.Lock()
			id, ok := s.tokens[token]
			s.mu.Unlock()
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing or invalid credentials")
				return
			}
			caller = id
		}
		h(w, req, caller)
	}))
}

// Helpers below expect s.mu to be held unless noted.

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *Server) addUser(username, email, password string) *user {
	now := s.tick().Format(time.RFC3339)
	u := &user{
		ID:       s.id(),
		Password: password,
		Fields: map[string]any{
			"username":         username,
			"email":            email,
			"isVerified":       false,
			"verificationStep": 0,
			"createdAt":        now,
			"updatedAt":        now,
		},
	}
	s.users[u.ID] = u
	return u
}

func (s *Server) issueToken(userID int64) string {
	token := fmt.Sprintf("token-%d-%d", userID, s.id())
	s.tokens[token] = userID
	return token
}

func (s *Server) fileJSON(id int64) any {
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	return map[string]any{"id": f.ID, "name": f.Name, "url": f.URL}
}

func (s *Server) userJSON(u *user) map[string]any {
	out := map[string]any{"id": u.ID}
	for k, v := range u.Fields {
		out[k] = v
	}
	for _, key := range []string{"profilePicture", "avatar"} {
		if id, ok := asID(u.Fields[key]); ok {
			out[key] = s.fileJSON(id)
		}
	}
	if imgs, ok := u.Fields["identityImages"].(map[string]any); ok && s.populateIdentity {
		resolved := map[string]any{}
		for side, v := range imgs {
			if id, ok := asID(v); ok {
				resolved[side] = s.fileJSON(id)
			}
		}
		out["identityImages"] = resolved
	}
	return out
}

func (s *Server) authorJSON(id int64) any {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	full := s.userJSON(u)
	return map[string]any{
		"id":             u.ID,
		"username":       full["username"],
		"firstName":      full["firstName"],
		"lastName":       full["lastName"],
		"profilePicture": full["profilePicture"],
		"avatar":         full["avatar"],
	}
}

func (s *Server) postJSON(p *post, caller int64) map[string]any {
	out := map[string]any{
		"id":        p.ID,
		"content":   p.Content,
		"likes":     p.Likes,
		"comments":  p.Comments,
		"isLiked":   p.LikedBy[caller],
		"createdAt": p.CreatedAt.Format(time.RFC3339),
		"updatedAt": p.CreatedAt.Format(time.RFC3339),
		"author":    s.authorJSON(p.AuthorID),
	}
	if p.ImageID != 0 {
		out["image"] = s.fileJSON(p.ImageID)
	}
	return out
}

func (s *Server) commentJSON(c *comment) map[string]any {
	return map[string]any{
		"id":        c.ID,
		"content":   c.Content,
		"createdAt": c.CreatedAt.Format(time.RFC3339),
		"author":    s.authorJSON(c.AuthorID),
		"post":      map[string]any{"id": c.PostID},
	}
}

func asID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n != 0
	case int64:
		return n, n != 0
	case int:
		return int64(n), n != 0
	}
	return 0, false
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"data": nil,
		"error": map[string]any{
			"status":  status,
			"name":    http.StatusText(status),
			"message": message,
		},
	})
}

func sortedDesc[T any](items []T, key func(T) int64) []T {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) > key(items[j]) })
	return items
}
