package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer() *Normalizer {
	return New(media.NewResolver("http://cms.test", "/placeholder.png"))
}

const flatPostJSON = `{
	"id": 12,
	"documentId": "abc",
	"content": "hello",
	"likes": 3,
	"comments": 1,
	"isLiked": true,
	"createdAt": "2024-05-01T10:00:00.000Z",
	"updatedAt": "2024-05-01T11:00:00.000Z",
	"image": {"id": 5, "url": "/uploads/p.png"},
	"author": {
		"id": 2, "username": "al", "firstName": "Al",
		"avatar": {"id": 9, "url": "https://cdn.test/a.png"}
	}
}`

const envelopePostJSON = `{
	"id": 12,
	"attributes": {
		"content": "hello",
		"likes": 3,
		"comments": 1,
		"isLiked": true,
		"createdAt": "2024-05-01T10:00:00.000Z",
		"updatedAt": "2024-05-01T11:00:00.000Z",
		"image": {"data": {"id": 5, "attributes": {"url": "/uploads/p.png"}}},
		"author": {"data": {"id": 2, "attributes": {
			"username": "al", "firstName": "Al",
			"avatar": {"data": {"id": 9, "attributes": {"url": "https://cdn.test/a.png"}}}
		}}}
	}
}`

func TestPost_BothShapesAgree(t *testing.T) {
	n := newNormalizer()

	flat, err := n.Post(json.RawMessage(flatPostJSON))
	require.NoError(t, err)
	env, err := n.Post(json.RawMessage(envelopePostJSON))
	require.NoError(t, err)

	assert.Equal(t, flat, env)

	assert.Equal(t, int64(12), flat.ID)
	assert.Equal(t, "hello", flat.Content)
	assert.Equal(t, 3, flat.Likes)
	assert.Equal(t, 1, flat.Comments)
	assert.True(t, flat.IsLiked)
	require.NotNil(t, flat.Image)
	assert.Equal(t, "http://cms.test/uploads/p.png", flat.Image.URL)
	assert.Equal(t, int64(2), flat.Author.ID)
	assert.Equal(t, "https://cdn.test/a.png", flat.Author.AvatarURL)
	assert.True(t, flat.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestPost_DefaultsMissingFields(t *testing.T) {
	n := newNormalizer()

	p, err := n.Post(json.RawMessage(`{"id": 4}`))
	require.NoError(t, err)

	assert.Equal(t, "", p.Content)
	assert.Equal(t, 0, p.Likes)
	assert.False(t, p.IsLiked)
	assert.Nil(t, p.Image)
	assert.Equal(t, UnknownUsername, p.Author.Username)
	assert.Equal(t, "/placeholder.png", p.Author.AvatarURL)
	assert.True(t, p.CreatedAt.IsZero())

	p, err = n.Post(json.RawMessage(`{"id": 4, "attributes": {"author": {"data": null}}}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownUsername, p.Author.Username)
}

func TestPost_DataWrapperAndMissingID(t *testing.T) {
	n := newNormalizer()

	p, err := n.Post(json.RawMessage(`{"data": {"id": 8, "content": "wrapped"}, "meta": {}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.ID)
	assert.Equal(t, "wrapped", p.Content)

	_, err = n.Post(json.RawMessage(`{"content": "no id"}`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = n.Post(json.RawMessage(`{"id": "twelve"}`))
	assert.Error(t, err)
}

func TestPosts_ListShapes(t *testing.T) {
	n := newNormalizer()

	wrapped := `{"data": [` + flatPostJSON + `, {"id": 0}, {"id": "bad"}, ` + envelopePostJSON + `], "meta": {"pagination": {}}}`
	posts := n.Posts(json.RawMessage(wrapped))
	require.Len(t, posts, 2, "zero ids and undecodable records are dropped")

	bare := n.Posts(json.RawMessage(`[{"id": 1}, {"id": 2}]`))
	require.Len(t, bare, 2)
	assert.Equal(t, int64(1), bare[0].ID)

	assert.Empty(t, n.Posts(json.RawMessage(`{"data": null}`)))
	assert.Empty(t, n.Posts(json.RawMessage(`{"error": {"message": "nope"}}`)))
	assert.NotNil(t, n.Posts(json.RawMessage(`"garbage"`)))
}

func TestComment_Shapes(t *testing.T) {
	n := newNormalizer()

	flat, err := n.Comment(json.RawMessage(`{
		"id": 3, "content": "nice", "createdAt": "2024-05-02T00:00:00Z",
		"author": {"id": 2, "username": "al", "profilePicture": {"id": 1, "url": "/uploads/me.png"}},
		"post": {"id": 12}
	}`))
	require.NoError(t, err)

	env, err := n.Comment(json.RawMessage(`{
		"id": 3, "attributes": {
			"content": "nice", "createdAt": "2024-05-02T00:00:00Z",
			"author": {"data": {"id": 2, "attributes": {"username": "al",
				"profilePicture": {"data": {"id": 1, "attributes": {"url": "/uploads/me.png"}}}}}},
			"post": {"data": {"id": 12}}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, flat, env)
	assert.Equal(t, int64(12), flat.PostID)
	assert.Equal(t, "http://cms.test/uploads/me.png", flat.Author.AvatarURL)

	list := n.Comments(json.RawMessage(`{"data": [{"id": 0, "attributes": {"content": "x"}}, {"id": 1, "attributes": {}}]}`))
	require.Len(t, list, 1)
	assert.Equal(t, UnknownUsername, list[0].Author.Username)
}

func TestUser_Flat(t *testing.T) {
	n := newNormalizer()

	u, err := n.User(json.RawMessage(`{
		"id": 7, "username": "al", "email": "a@b.com", "firstName": "Al",
		"socialMedia": {"twitter": "@al"},
		"skills": ["go", "sql"],
		"experience": [{"id": "e1", "company": "Acme", "position": "Dev", "startDate": "2020-01"}],
		"isVerified": false, "verificationStep": 3, "identityType": "passport", "nidStatus": "pending",
		"identityImages": {"front": {"id": 1, "url": "/uploads/f.png"}, "back": {"id": 2, "url": "/uploads/b.png"}},
		"profilePicture": {"id": 3, "url": "/uploads/pp.png"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "@al", u.SocialMedia.Twitter)
	assert.Equal(t, []string{"go", "sql"}, u.Skills)
	require.Len(t, u.Experience, 1)
	assert.Equal(t, "Acme", u.Experience[0].Company)
	assert.Equal(t, models.IdentityPassport, u.IdentityType)
	assert.Equal(t, models.StatusPending, u.VerificationStatus())
	require.NotNil(t, u.IdentityImages.Back)
	assert.Equal(t, "http://cms.test/uploads/b.png", u.IdentityImages.Back.URL)
	assert.Equal(t, "http://cms.test/uploads/pp.png", u.AvatarURL)
}

func TestUser_EnvelopeAndDefaults(t *testing.T) {
	n := newNormalizer()

	u, err := n.User(json.RawMessage(`{"id": 7, "attributes": {"username": "al",
		"avatar": {"data": {"id": 3, "attributes": {"url": "/uploads/av.png"}}}}}`))
	require.NoError(t, err)

	assert.Equal(t, "al", u.Username)
	assert.Equal(t, "http://cms.test/uploads/av.png", u.AvatarURL)
	assert.Equal(t, []string{}, u.Skills)
	assert.Equal(t, []models.Experience{}, u.Experience)

	users := n.Users(json.RawMessage(`[{"id": 1, "username": "a"}, {"username": "no id"}, {"id": 2, "username": "b"}]`))
	require.Len(t, users, 2)
	assert.Equal(t, "b", users[1].Username)
}

func TestUploads(t *testing.T) {
	n := newNormalizer()

	got, err := n.Uploads(json.RawMessage(`[{"id": 11, "url": "/uploads/x.png", "name": "x.png"}, {"id": 12, "url": "/uploads/y.png"}]`))
	require.NoError(t, err)
	assert.Equal(t, []models.Media{
		{ID: 11, URL: "http://cms.test/uploads/x.png"},
		{ID: 12, URL: "http://cms.test/uploads/y.png"},
	}, got)

	_, err = n.Uploads(json.RawMessage(`[{"url": "/uploads/x.png"}]`))
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = n.Uploads(json.RawMessage(`{"oops": true}`))
	assert.Error(t, err)
}

func TestUser_StoredIdentityImageIDs(t *testing.T) {
	n := newNormalizer()
	const stored = `{"id": 7, "username": "al", "verificationStep": 3, "nidStatus": "pending",
		"identityImages": {"front": 12, "back": 13}}`

	u, err := n.User(json.RawMessage(stored))
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, 3, u.VerificationStep)
	require.NotNil(t, u.IdentityImages.Front)
	assert.Equal(t, &models.Media{ID: 12}, u.IdentityImages.Front)
	assert.Equal(t, &models.Media{ID: 13}, u.IdentityImages.Back)

	env, err := n.User(json.RawMessage(`{"id": 7, "attributes": {"username": "al",
		"identityImages": {"front": "12", "back": "/uploads/b.png"}}}`))
	require.NoError(t, err)
	assert.Equal(t, &models.Media{ID: 12}, env.IdentityImages.Front)
	assert.Equal(t, &models.Media{URL: "http://cms.test/uploads/b.png"}, env.IdentityImages.Back)

	users := n.Users(json.RawMessage(`[` + stored + `]`))
	require.Len(t, users, 1)
	assert.Equal(t, "al", users[0].Username)
}

func TestUser_WrongTypedFieldsDefault(t *testing.T) {
	n := newNormalizer()

	u, err := n.User(json.RawMessage(`{
		"id": "7", "username": "al", "bio": 42, "isVerified": "true",
		"verificationStep": "2", "skills": "go", "socialMedia": [],
		"identityImages": "none", "avatar": 3
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "", u.Bio)
	assert.True(t, u.IsVerified)
	assert.Equal(t, 2, u.VerificationStep)
	assert.Equal(t, []string{}, u.Skills)
	assert.Equal(t, models.SocialMedia{}, u.SocialMedia)
	assert.Nil(t, u.IdentityImages.Front)
	require.NotNil(t, u.Avatar)
	assert.Equal(t, int64(3), u.Avatar.ID)
	assert.Equal(t, "/placeholder.png", u.AvatarURL)
}

func TestPost_WrongTypedFieldsDefault(t *testing.T) {
	n := newNormalizer()

	p, err := n.Post(json.RawMessage(`{"id": 4, "content": "hi", "comments": "2", "likes": true,
		"isLiked": null, "author": 5, "image": 9, "createdAt": 17}`))
	require.NoError(t, err)

	assert.Equal(t, 2, p.Comments)
	assert.Equal(t, 0, p.Likes)
	assert.False(t, p.IsLiked)
	assert.Equal(t, UnknownUsername, p.Author.Username)
	require.NotNil(t, p.Image)
	assert.Equal(t, int64(9), p.Image.ID)
	assert.True(t, p.CreatedAt.IsZero())

	_, err = n.Post(json.RawMessage(`[1, 2]`))
	assert.Error(t, err)
}
