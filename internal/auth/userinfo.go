package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lexpost/internal/apperr"
	"lexpost/internal/domain"

	"golang.org/x/oauth2"
)

// UserInfoProvider resolves a bearer token by calling the provider's userinfo endpoint with it.
type UserInfoProvider struct {
	url     string
	timeout time.Duration
	base    *http.Client
}

func NewUserInfoProvider(url string, base *http.Client) *UserInfoProvider {
	if base == nil {
		base = http.DefaultClient
	}
	return &UserInfoProvider{url: url, timeout: 10 * time.Second, base: base}
}

type userInfoResponse struct {
	ID    json.RawMessage `json:"id"`
	Sub   string          `json:"sub"`
	Email string          `json:"email"`
	Role  string          `json:"role"`
}

func (p *UserInfoProvider) GetUserContext(ctx context.Context, bearerToken string) (*UserContext, error) {
	if bearerToken == "" {
		return nil, apperr.Auth("missing bearer token")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, apperr.Internal("build userinfo request").Wrap(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.ExternalService("identity provider unreachable").Wrap(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Auth("invalid or expired token")
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.ExternalService("identity provider returned %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperr.ExternalService("identity provider returned an unexpected shape").Wrap(err)
	}
	id, err := parseUserID(info.ID, info.Sub)
	if err != nil || info.Email == "" {
		return nil, apperr.ExternalService("identity provider response lacks id or email")
	}
	role := domain.Role(info.Role)
	if !role.Valid() {
		role = domain.RoleUser
	}
	return &UserContext{ID: id, Email: info.Email, Role: role}, nil
}

func parseUserID(raw json.RawMessage, sub string) (uint, error) {
	s := sub
	if len(raw) > 0 {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			s = n.String()
		} else {
			var str string
			if err := json.Unmarshal(raw, &str); err != nil {
				return 0, err
			}
			s = str
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return uint(id), nil
}
