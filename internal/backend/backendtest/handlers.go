package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ int64) {
	var p struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Username == "" || p.Email == "" || p.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Fields["username"] == p.Username || u.Fields["email"] == p.Email {
			writeError(w, http.StatusBadRequest, "Email or Username are already taken")
			return
		}
	}
	u := s.addUser(p.Username, p.Email, p.Password)
	writeJSON(w, http.StatusOK, map[string]any{"jwt": s.issueToken(u.ID), "user": s.userJSON(u)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ int64) {
	var p struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (u.Fields["username"] == p.Identifier || u.Fields["email"] == p.Identifier) && u.Password == p.Password {
			writeJSON(w, http.StatusOK, map[string]any{"jwt": s.issueToken(u.ID), "user": s.userJSON(u)})
			return
		}
	}
	writeError(w, http.StatusBadRequest, "Invalid identifier or password")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request, caller int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[caller]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, s.userJSON(u))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, _ int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[pathID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, s.userJSON(u))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, caller int64) {
	id := pathID(r)
	if id != caller {
		writeError(w, http.StatusForbidden, "You can only update your own profile")
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	for k, v := range fields {
		if k == "id" || k == "password" {
			continue
		}
		u.Fields[k] = v
	}
	u.Fields["updatedAt"] = s.tick().Format("2006-01-02T15:04:05Z07:00")
	writeJSON(w, http.StatusOK, s.userJSON(u))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ int64) {
	exclude, _ := strconv.ParseInt(r.URL.Query().Get("filters[id][$ne]"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	var users []*user
	for _, u := range s.users {
		if u.ID != exclude {
			users = append(users, u)
		}
	}
	users = sortedDesc(users, func(u *user) int64 { return -u.ID })
	out := make([]any, 0, len(users))
	for _, u := range users {
		out = append(out, s.userJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request, caller int64) {
	author, _ := strconv.ParseInt(r.URL.Query().Get("filters[author][id][$eq]"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	var posts []*post
	for _, p := range s.posts {
		if author == 0 || p.AuthorID == author {
			posts = append(posts, p)
		}
	}
	posts = sortedDesc(posts, func(p *post) int64 { return p.ID })
	out := make([]any, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.postJSON(p, caller))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]any{}})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request, caller int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[pathID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.postJSON(p, caller)})
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request, caller int64) {
	var body struct {
		Data struct {
			Content string `json:"content"`
			Author  int64  `json:"author"`
			Image   int64  `json:"image"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if body.Data.Image != 0 {
		if _, ok := s.files[body.Data.Image]; !ok {
			writeError(w, http.StatusBadRequest, "Unknown image")
			return
		}
	}
	p := &post{
		ID:        s.id(),
		Content:   body.Data.Content,
		AuthorID:  body.Data.Author,
		ImageID:   body.Data.Image,
		LikedBy:   map[int64]bool{},
		CreatedAt: s.tick(),
	}
	s.posts[p.ID] = p
	// The create answer carries no relations, like the real backend.
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":        p.ID,
		"content":   p.Content,
		"createdAt": p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}})
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request, caller int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[pathID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if p.AuthorID != caller {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	delete(s.posts, p.ID)
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": p.ID}})
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request, caller int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[pathID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if p.LikedBy[caller] {
		delete(p.LikedBy, caller)
		p.Likes--
	} else {
		p.LikedBy[caller] = true
		p.Likes++
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.postJSON(p, caller)})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request, _ int64) {
	postID, _ := strconv.ParseInt(r.URL.Query().Get("filters[post][id][$eq]"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	var comments []*comment
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	comments = sortedDesc(comments, func(c *comment) int64 { return c.ID })
	out := make([]any, 0, len(comments))
	for _, c := range comments {
		out = append(out, s.commentJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]any{}})
}

func (s *Server) getComment(w http.ResponseWriter, r *http.Request, _ int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[pathID(r)]
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.commentJSON(c)})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request, caller int64) {
	var body struct {
		Data struct {
			Content string `json:"content"`
			Post    int64  `json:"post"`
			Author  int64  `json:"author"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data.Content == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[body.Data.Post]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown post")
		return
	}
	c := &comment{
		ID:        s.id(),
		PostID:    body.Data.Post,
		AuthorID:  body.Data.Author,
		Content:   body.Data.Content,
		CreatedAt: s.tick(),
	}
	s.comments[c.ID] = c
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":        c.ID,
		"content":   c.Content,
		"createdAt": c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, _ int64) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "Files are empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, 0, len(headers))
	for _, h := range headers {
		f := &file{ID: s.id(), Name: h.Filename}
		f.URL = fmt.Sprintf("/uploads/%d_%s", f.ID, h.Filename)
		s.files[f.ID] = f
		out = append(out, s.fileJSON(f.ID))
	}
	writeJSON(w, http.StatusOK, out)
}
