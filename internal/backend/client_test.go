package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/backend/backendtest"
	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(srv *backendtest.Server, token string) *backend.Client {
	norm := normalize.New(media.NewResolver(srv.URL, ""))
	return backend.New(srv.URL, backendtest.Prefix, norm, backend.WithToken(token))
}

func TestRegisterAndLogin(t *testing.T) {
	srv := backendtest.New(t)
	c := newClient(srv, "")
	ctx := context.Background()

	res, err := c.Register(ctx, "al", "a@b.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "al", res.User.Username)

	calls := srv.CallsTo(http.MethodPost, "/auth/local/register")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Auth, "registration is unauthenticated")
	assert.JSONEq(t, `{"username":"al","email":"a@b.com","password":"secret1"}`, string(calls[0].Body))

	res, err = c.Login(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "al", res.User.Username)

	_, err = c.Login(ctx, "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusBadRequest))
	assert.Equal(t, "Invalid identifier or password", backend.MessageOf(err, "Login failed"))
}

func TestMe_Unauthorized(t *testing.T) {
	srv := backendtest.New(t)
	c := newClient(srv, "not-a-token")

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusUnauthorized))
	assert.True(t, backend.IsHTTP(err))
}

func TestTransportFailureIsNotHTTP(t *testing.T) {
	srv := backendtest.New(t)
	c := newClient(srv, "x")
	srv.Close()

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.False(t, backend.IsHTTP(err))
	assert.Equal(t, "fallback", backend.MessageOf(err, "fallback"))
}

func TestAs_BindsToken(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)

	anon := newClient(srv, "")
	me, err := anon.As(token).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, me.ID)
	assert.Empty(t, anon.Token(), "As must not mutate the receiver")
}

func TestListPosts_FallsBackToSimplerQueries(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	srv.SeedPost(id, "first")
	srv.SeedPost(id, "second")

	attempts := 0
	srv.Override(http.MethodGet, "/posts", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":2,"attributes":{"content":"second"}},{"id":1,"attributes":{"content":"first"}}]}`))
	})

	posts, err := newClient(srv, token).ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "second", posts[0].Content)

	calls := srv.CallsTo(http.MethodGet, "/posts")
	require.Len(t, calls, 3)
	assert.Equal(t, "profilePicture,avatar", calls[0].Query.Get("populate[author][populate]"))
	assert.Equal(t, "*", calls[1].Query.Get("populate"))
	assert.Empty(t, calls[2].Query)
}

func TestListPosts_AllAttemptsFail(t *testing.T) {
	srv := backendtest.New(t)
	srv.Fail(http.MethodGet, "/posts", http.StatusInternalServerError, "boom")

	_, err := newClient(srv, "x").ListPosts(context.Background())
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusInternalServerError))
}

func TestCreatePost_RefetchesPopulated(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", map[string]any{"firstName": "Al"})
	c := newClient(srv, token)
	ctx := context.Background()

	uploaded, err := c.Upload(ctx, models.Upload{Name: "cat.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	require.Len(t, uploaded, 1)

	post, err := c.CreatePost(ctx, "hello", id, uploaded[0].ID)
	require.NoError(t, err)

	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, "Al", post.Author.FirstName, "author comes from the populated refetch")
	require.NotNil(t, post.Image)
	assert.Equal(t, uploaded[0].URL, post.Image.URL)

	create := srv.CallsTo(http.MethodPost, "/posts")
	require.Len(t, create, 1)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(create[0].Body, &body))
	assert.Equal(t, float64(uploaded[0].ID), body.Data["image"])
	assert.Equal(t, float64(0), body.Data["likes"])
}

func TestCreatePost_RefetchFailureUsesCreateResponse(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	srv.Fail(http.MethodGet, "/posts/{id}", http.StatusInternalServerError, "")

	post, err := newClient(srv, token).CreatePost(context.Background(), "text only", id, 0)
	require.NoError(t, err)
	assert.Equal(t, "text only", post.Content)
	assert.Equal(t, "Unknown User", post.Author.Username)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(srv.CallsTo(http.MethodPost, "/posts")[0].Body, &body))
	_, hasImage := body.Data["image"]
	assert.False(t, hasImage)
}

func TestComments_RoundTrip(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	postID := srv.SeedPost(id, "post")
	srv.SeedComment(postID, id, "older")
	c := newClient(srv, token)
	ctx := context.Background()

	created, err := c.CreateComment(ctx, postID, id, "newer")
	require.NoError(t, err)
	assert.Equal(t, "al", created.Author.Username)
	assert.Equal(t, postID, created.PostID)

	comments, err := c.ListComments(ctx, postID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "newer", comments[0].Content)

	list := srv.CallsTo(http.MethodGet, "/comments")
	require.Len(t, list, 1)
	assert.Equal(t, "createdAt:desc", list[0].Query.Get("sort"))
}

func TestLikeAndDelete(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	otherID, _ := srv.SeedUser("bo", "b@b.com", "secret1", nil)
	mine := srv.SeedPost(id, "mine")
	theirs := srv.SeedPost(otherID, "theirs")
	c := newClient(srv, token)
	ctx := context.Background()

	require.NoError(t, c.LikePost(ctx, theirs))
	assert.Equal(t, 1, srv.PostLikes(theirs))

	err := c.DeletePost(ctx, theirs)
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	require.NoError(t, c.DeletePost(ctx, mine))
	assert.False(t, srv.HasPost(mine))
}

func TestUsers(t *testing.T) {
	srv := backendtest.New(t)
	id, token := srv.SeedUser("al", "a@b.com", "secret1", nil)
	srv.SeedUser("bo", "b@b.com", "secret1", nil)
	c := newClient(srv, token)
	ctx := context.Background()

	others, err := c.ListUsers(ctx, id)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "bo", others[0].Username)

	updated, err := c.UpdateUser(ctx, id, map[string]any{"bio": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", updated.Bio)

	got, err := c.GetUser(ctx, others[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "bo", got.Username)
}

func TestUpload_MultipleFilesKeepOrder(t *testing.T) {
	srv := backendtest.New(t)
	_, token := srv.SeedUser("al", "a@b.com", "secret1", nil)

	got, err := newClient(srv, token).Upload(context.Background(),
		models.Upload{Name: "front.jpg", Data: []byte("f")},
		models.Upload{Name: "back.jpg", Data: []byte("b")},
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].URL, "front.jpg")
	assert.Contains(t, got[1].URL, "back.jpg")

	_, err = newClient(srv, token).Upload(context.Background())
	assert.Error(t, err)
}
