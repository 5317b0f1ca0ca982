// Package api is the client for the remote RBAC backend.
//
// Every call takes the caller's access token explicitly; the client holds
// no session state of its own.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/models"
)

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "https://ec2api.deltatech-backend.com/api/v1"

// Collection paths, relative to the base URL. They double as the stem of
// query cache keys.
const (
	PermissionsPath = "/permissions"
	GroupsPath      = "/groups"
	LoginPath       = "/auth/login"
)

// Operation names used in errors, logs and metrics.
const (
	OpLogin            = "auth.login"
	OpListPermissions  = "permissions.list"
	OpCreatePermission = "permissions.create"
	OpDeletePermission = "permissions.delete"
	OpListGroups       = "groups.list"
	OpCreateGroup      = "groups.create"
	OpDeleteGroup      = "groups.delete"
)

// ErrMissingToken is returned when a call that needs a bearer token gets
// none.
var ErrMissingToken = errors.New("api: missing access token")

// Error is a non-2xx answer from the backend.
type Error struct {
	Op     string
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Observer receives one notification per upstream call.
type Observer interface {
	ObserveUpstream(op string, status int, err error, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the backend.
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	observer Observer
}

// New creates a client. Calls are never retried.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: rc, logger: opts.Logger, observer: opts.Observer}
}

// PermissionsURL is the composed list URL for f.
func PermissionsURL(f filter.Filter) string { return f.Compose(PermissionsPath) }

// ListPermissions fetches the permissions matching f.
func (c *Client) ListPermissions(ctx context.Context, token string, f filter.Filter) ([]models.Permission, error) {
	var out []models.Permission
	req, err := c.authed(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpListPermissions, err)
	}
	req.SetQueryParamsFromValues(f.Values()).SetResult(&out)
	if err := c.do(req, OpListPermissions, http.MethodGet, PermissionsPath); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Permission{}
	}
	return out, nil
}

// CreatePermission creates a permission.
func (c *Client) CreatePermission(ctx context.Context, token string, in models.NewPermission) (*models.Permission, error) {
	var out models.Permission
	req, err := c.authed(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpCreatePermission, err)
	}
	req.SetBody(in).SetResult(&out)
	if err := c.do(req, OpCreatePermission, http.MethodPost, PermissionsPath); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePermission deletes the permission with id.
func (c *Client) DeletePermission(ctx context.Context, token string, id int64) error {
	req, err := c.authed(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", OpDeletePermission, err)
	}
	return c.do(req, OpDeletePermission, http.MethodDelete, PermissionsPath+"/"+strconv.FormatInt(id, 10))
}

// ListGroups fetches every group, active or not.
func (c *Client) ListGroups(ctx context.Context, token string) (models.GroupList, error) {
	var out models.GroupList
	req, err := c.authed(ctx, token)
	if err != nil {
		return out, fmt.Errorf("%s: %w", OpListGroups, err)
	}
	req.SetResult(&out)
	if err := c.do(req, OpListGroups, http.MethodGet, GroupsPath); err != nil {
		return models.GroupList{}, err
	}
	return out, nil
}

// CreateGroup creates a group with the given permissions.
func (c *Client) CreateGroup(ctx context.Context, token string, in models.NewGroup) (*models.Role, error) {
	var out models.Role
	req, err := c.authed(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpCreateGroup, err)
	}
	if in.PermissionIDs == nil {
		in.PermissionIDs = []int64{}
	}
	req.SetBody(in).SetResult(&out)
	if err := c.do(req, OpCreateGroup, http.MethodPost, GroupsPath); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteGroup deletes the group with id.
func (c *Client) DeleteGroup(ctx context.Context, token string, id int64) error {
	req, err := c.authed(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", OpDeleteGroup, err)
	}
	return c.do(req, OpDeleteGroup, http.MethodDelete, GroupsPath+"/"+strconv.FormatInt(id, 10))
}

func (c *Client) authed(ctx context.Context, token string) (*resty.Request, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) do(req *resty.Request, op, method, path string) error {
	start := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	if c.observer != nil {
		c.observer.ObserveUpstream(op, status, err, elapsed)
	}

	if err != nil {
		c.logger.Error("upstream call failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		c.logger.Warn("upstream call rejected",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
		return &Error{Op: op, Status: status, Body: truncate(resp.String(), 512)}
	}
	c.logger.Debug("upstream call",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
