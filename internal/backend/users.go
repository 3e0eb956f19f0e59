package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Mohammad2410/Sphere/internal/models"
)

// AuthResult is what login and registration hand back.
type AuthResult struct {
	Token string
	User  models.User
}

type authResponse struct {
	JWT   string          `json:"jwt"`
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func (c *Client) authResult(raw json.RawMessage) (AuthResult, error) {
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return AuthResult{}, fmt.Errorf("decode auth response: %w", err)
	}
	token := resp.JWT
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return AuthResult{}, fmt.Errorf("auth response carried no token")
	}
	user, err := c.norm.User(resp.User)
	if err != nil {
		return AuthResult{}, fmt.Errorf("auth response user: %w", err)
	}
	return AuthResult{Token: token, User: user}, nil
}

// Register creates an account. Only the fields the auth endpoint accepts
// are sent; profile fields go through UpdateUser afterwards.
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	raw, err := c.doJSON(ctx, http.MethodPost, "/auth/local/register", nil, payload, true)
	if err != nil {
		return AuthResult{}, err
	}
	return c.authResult(raw)
}

// Login exchanges credentials for a token. identifier is a username or an
// email address.
func (c *Client) Login(ctx context.Context, identifier, password string) (AuthResult, error) {
	payload := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	raw, err := c.doJSON(ctx, http.MethodPost, "/auth/local", nil, payload, true)
	if err != nil {
		return AuthResult{}, err
	}
	return c.authResult(raw)
}

func populateAll() url.Values {
	return url.Values{"populate": {"*"}}
}

// Me resolves the user owning the client's token.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	raw, err := c.get(ctx, "/users/me", populateAll())
	if err != nil {
		return models.User{}, err
	}
	return c.norm.User(raw)
}

// GetUser fetches one user's public profile.
func (c *Client) GetUser(ctx context.Context, id int64) (models.User, error) {
	raw, err := c.get(ctx, "/users/"+strconv.FormatInt(id, 10), populateAll())
	if err != nil {
		return models.User{}, err
	}
	return c.norm.User(raw)
}

// UpdateUser sends a partial profile update. fields is encoded as a flat
// JSON object.
func (c *Client) UpdateUser(ctx context.Context, id int64, fields any) (models.User, error) {
	raw, err := c.doJSON(ctx, http.MethodPut, "/users/"+strconv.FormatInt(id, 10), nil, fields, false)
	if err != nil {
		return models.User{}, err
	}
	return c.norm.User(raw)
}

// ListUsers lists every user except excludeID.
func (c *Client) ListUsers(ctx context.Context, excludeID int64) ([]models.User, error) {
	q := populateAll()
	q.Set("filters[id][$ne]", strconv.FormatInt(excludeID, 10))
	raw, err := c.get(ctx, "/users", q)
	if err != nil {
		return nil, err
	}
	return c.norm.Users(raw), nil
}
