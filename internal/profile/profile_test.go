package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/backend/backendtest"
	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *backendtest.Server
	client *backend.Client
	me     models.User
}

func newFixture(t *testing.T, fields map[string]any) *fixture {
	t.Helper()
	srv := backendtest.New(t)
	_, token := srv.SeedUser("al", "a@b.com", "secret1", fields)
	client := backend.New(srv.URL, backendtest.Prefix, normalize.New(media.NewResolver(srv.URL, "")), backend.WithToken(token))
	me, err := client.Me(context.Background())
	require.NoError(t, err)
	srv.ResetCalls()
	return &fixture{srv: srv, client: client, me: me}
}

func (f *fixture) userPath() string {
	return "/users/" + strconv.FormatInt(f.me.ID, 10)
}

func TestEditor_RequiresEditMode(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)

	assert.ErrorIs(t, e.AddSkill("go"), ErrNotEditing)
	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotEditing)
	assert.Empty(t, f.srv.Calls())
}

func TestEditor_Skills(t *testing.T) {
	f := newFixture(t, map[string]any{"skills": []any{"go"}})
	e := NewEditor(f.client, f.me, nil)
	e.Edit()

	require.NoError(t, e.AddSkill("  rust "))
	require.NoError(t, e.AddSkill("go"))
	require.NoError(t, e.AddSkill("   "))
	assert.Equal(t, []string{"go", "rust"}, e.Form().Skills)

	require.NoError(t, e.RemoveSkill("go"))
	assert.Equal(t, []string{"rust"}, e.Form().Skills)
}

func TestEditor_Experience(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)
	e.Edit()

	first, err := e.AddExperience()
	require.NoError(t, err)
	second, err := e.AddExperience()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, e.UpdateExperience(first, "company", "Acme"))
	require.NoError(t, e.UpdateExperience(first, "position", "Engineer"))
	assert.ErrorIs(t, e.UpdateExperience(first, "salary", "lots"), ErrUnknownField)
	assert.ErrorIs(t, e.UpdateExperience("nope", "company", "x"), ErrUnknownExperience)

	require.NoError(t, e.RemoveExperience(second))
	exp := e.Form().Experience
	require.Len(t, exp, 1)
	assert.Equal(t, "Acme", exp[0].Company)
	assert.Equal(t, "Engineer", exp[0].Position)
}

func TestEditor_CancelRestores(t *testing.T) {
	f := newFixture(t, map[string]any{"bio": "original"})
	e := NewEditor(f.client, f.me, nil)
	e.Edit()

	form := e.Form()
	form.Bio = "changed"
	require.NoError(t, e.SetFields(form))
	require.NoError(t, e.AddSkill("go"))
	require.NoError(t, e.SetPicture(&models.Upload{Name: "me.png"}))

	e.Cancel()
	v := e.View()
	assert.False(t, v.Editing)
	assert.Equal(t, "original", v.Form.Bio)
	assert.Empty(t, v.Form.Skills)
	assert.Empty(t, v.PictureName)
}

func TestEditor_Save(t *testing.T) {
	f := newFixture(t, nil)
	var updated []models.User
	e := NewEditor(f.client, f.me, func(u models.User) { updated = append(updated, u) })
	e.Edit()

	form := e.Form()
	form.FirstName = "Al"
	form.Bio = "hello"
	form.SocialMedia.Twitter = "@al"
	require.NoError(t, e.SetFields(form))
	require.NoError(t, e.AddSkill("go"))
	id, err := e.AddExperience()
	require.NoError(t, err)
	require.NoError(t, e.UpdateExperience(id, "company", "Acme"))
	require.NoError(t, e.SetPicture(&models.Upload{Name: "me.png", ContentType: "image/png", Data: []byte("png")}))

	u, err := e.Save(context.Background())
	require.NoError(t, err)

	calls := f.srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/upload", calls[0].Path)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	assert.Equal(t, f.userPath(), calls[1].Path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(calls[1].Body, &body))
	assert.Equal(t, "Al", body["firstName"])
	assert.Equal(t, "hello", body["bio"])
	assert.Equal(t, []any{"go"}, body["skills"])
	assert.NotZero(t, body["profilePicture"])

	assert.Equal(t, "hello", u.Bio)
	assert.Equal(t, "@al", u.SocialMedia.Twitter)
	require.NotNil(t, u.ProfilePicture)
	assert.Equal(t, u.ProfilePicture.URL, u.AvatarURL)
	require.Len(t, u.Experience, 1)
	assert.Equal(t, id, u.Experience[0].ID)

	require.Len(t, updated, 1)
	v := e.View()
	assert.False(t, v.Editing)
	assert.Equal(t, MsgUpdated, v.Message)
	assert.Empty(t, v.PictureName)
}

func TestEditor_SaveWithoutPictureSkipsUpload(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)
	e.Edit()

	_, err := e.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.srv.CallsTo(http.MethodPost, "/upload"))

	var body map[string]any
	puts := f.srv.CallsTo(http.MethodPut, f.userPath())
	require.Len(t, puts, 1)
	require.NoError(t, json.Unmarshal(puts[0].Body, &body))
	assert.NotContains(t, body, "profilePicture")
}

func TestEditor_SaveFailureKeepsForm(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)
	e.Edit()
	form := e.Form()
	form.Bio = "draft"
	require.NoError(t, e.SetFields(form))

	f.srv.Fail(http.MethodPut, "/users/{id}", http.StatusBadRequest, "Username already taken")
	_, err := e.Save(context.Background())
	var serr *SaveError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Username already taken", serr.Message)

	v := e.View()
	assert.True(t, v.Editing)
	assert.Equal(t, "draft", v.Form.Bio)
	assert.Equal(t, "Username already taken", v.Error)

	f.srv.Fail(http.MethodPut, "/users/{id}", http.StatusInternalServerError, "")
	_, err = e.Save(context.Background())
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Update failed. Please try again.", serr.Message)
}

func TestEditor_PictureUploadFailureSkipsUpdate(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)
	e.Edit()
	require.NoError(t, e.SetPicture(&models.Upload{Name: "me.png", Data: []byte("png")}))
	f.srv.Fail(http.MethodPost, "/upload", http.StatusInternalServerError, "disk full")

	_, err := e.Save(context.Background())
	var serr *SaveError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Failed to upload profile picture", serr.Message)
	assert.Empty(t, f.srv.CallsTo(http.MethodPut, f.userPath()))
	assert.Equal(t, "me.png", e.View().PictureName)
}

func TestEditor_VerifiedUserKeepsRestrictedFields(t *testing.T) {
	f := newFixture(t, map[string]any{"isVerified": true, "firstName": "Al"})
	e := NewEditor(f.client, f.me, nil)
	e.Edit()

	form := e.Form()
	form.FirstName = "Someone Else"
	form.Username = "mallory"
	form.Bio = "still editable"
	require.NoError(t, e.SetFields(form))

	got := e.Form()
	assert.Equal(t, "Al", got.FirstName)
	assert.Equal(t, "al", got.Username)
	assert.Equal(t, "still editable", got.Bio)
	assert.False(t, e.View().CanEditRestrictedFields)
	assert.Equal(t, "Verified", e.View().VerificationStatus)
}

func TestEditor_VerificationSubmitted(t *testing.T) {
	f := newFixture(t, nil)
	e := NewEditor(f.client, f.me, nil)
	assert.Equal(t, "Not Verified", e.View().VerificationStatus)

	u := f.me
	u.VerificationStep = 3
	e.VerificationSubmitted(u)

	v := e.View()
	assert.Equal(t, "Verification in Progress", v.VerificationStatus)
	assert.Equal(t, MsgVerificationSent, v.Message)
}

func TestViewer_Load(t *testing.T) {
	f := newFixture(t, nil)
	otherID, _ := f.srv.SeedUser("bo", "bo@b.com", "secret1", map[string]any{"bio": "hi", "verificationStep": 2})
	f.srv.SeedPost(otherID, "bo's post")
	f.srv.SeedPost(f.me.ID, "al's post")

	v := NewViewer(f.client, otherID, f.me.Summary())
	assert.True(t, v.View().Loading)
	v.Load(context.Background())

	view := v.View()
	require.NotNil(t, view.User)
	assert.False(t, view.NotFound)
	assert.Equal(t, "hi", view.User.Bio)
	assert.Equal(t, "Pending", view.VerificationStatus)
	assert.Equal(t, TabPosts, view.Tab)
	require.NotNil(t, view.Posts)
	require.Len(t, view.Posts.Posts, 1)
	assert.Equal(t, "bo's post", view.Posts.Posts[0].Content)
	assert.False(t, view.Posts.Posts[0].CanDelete)

	require.NoError(t, v.SetTab(TabAbout))
	assert.Nil(t, v.View().Posts)
	assert.ErrorIs(t, v.SetTab("photos"), ErrUnknownTab)
}

func TestViewer_LikeWorksOnProfilePosts(t *testing.T) {
	f := newFixture(t, nil)
	otherID, _ := f.srv.SeedUser("bo", "bo@b.com", "secret1", nil)
	postID := f.srv.SeedPost(otherID, "like me")

	v := NewViewer(f.client, otherID, f.me.Summary())
	v.Load(context.Background())
	require.NoError(t, v.Feed().ToggleLike(context.Background(), postID))

	p, _, ok := v.Feed().Post(postID)
	require.True(t, ok)
	assert.Equal(t, 1, p.Likes)
	assert.Equal(t, 1, f.srv.PostLikes(postID))
}

func TestViewer_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	v := NewViewer(f.client, 999, f.me.Summary())
	v.Load(context.Background())

	view := v.View()
	assert.True(t, view.NotFound)
	assert.Nil(t, view.User)
	require.NotNil(t, view.Posts)
	assert.Empty(t, view.Posts.Posts)
}
