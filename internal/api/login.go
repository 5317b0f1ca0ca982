package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when a login answer carries no access token.
var ErrNoToken = errors.New("api: login response has no access token")

// Credentials are posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is a successful login. ExpiresAt is zero when neither the answer
// nor the token itself says when it expires.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	Expiration  json.RawMessage `json:"expiration"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (Token, error) {
	var out loginResponse
	req := c.http.R().SetContext(ctx).SetBody(creds).SetResult(&out)
	if err := c.do(req, OpLogin, http.MethodPost, LoginPath); err != nil {
		return Token{}, err
	}
	if out.AccessToken == "" {
		return Token{}, fmt.Errorf("%s: %w", OpLogin, ErrNoToken)
	}

	exp, err := parseExpiration(out.Expiration)
	if err != nil {
		c.logger.Sugar().Warnw("ignoring unparseable login expiration", "error", err)
	}
	if exp.IsZero() {
		exp = tokenExpiry(out.AccessToken)
	}
	return Token{AccessToken: out.AccessToken, ExpiresAt: exp}, nil
}

// parseExpiration accepts an RFC 3339 string, a numeric string, or a
// number. Numbers above 1e12 are taken as Unix milliseconds, others as
// Unix seconds.
func parseExpiration(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		raw = []byte(s)
	}

	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiration %q: %w", raw, err)
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)), nil
	}
	return time.Unix(int64(n), 0), nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
