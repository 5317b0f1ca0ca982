package console

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/diewo77/rbac-console/internal/api"
	"github.com/diewo77/rbac-console/internal/debounce"
	"github.com/diewo77/rbac-console/internal/filter"
	"github.com/diewo77/rbac-console/internal/models"
	"github.com/diewo77/rbac-console/internal/notify"
	"github.com/diewo77/rbac-console/internal/querycache"
)

// Cache resources. Mutations invalidate a whole resource.
const (
	ResourcePermissions = "permissions"
	ResourceGroups      = "groups"
)

// CloseAfterCreate is how long the group dialog stays open after a
// successful create.
const CloseAfterCreate = time.Second

// Backend is the slice of the remote API the views use. *api.Client
// implements it.
type Backend interface {
	ListPermissions(ctx context.Context, token string, f filter.Filter) ([]models.Permission, error)
	CreatePermission(ctx context.Context, token string, in models.NewPermission) (*models.Permission, error)
	DeletePermission(ctx context.Context, token string, id int64) error
	ListGroups(ctx context.Context, token string) (models.GroupList, error)
	CreateGroup(ctx context.Context, token string, in models.NewGroup) (*models.Role, error)
	DeleteGroup(ctx context.Context, token string, id int64) error
}

var _ Backend = (*api.Client)(nil)

// Deps are the collaborators of a view. The access token is injected per
// view; Backend holds no session.
type Deps struct {
	API      Backend
	Cache    *querycache.Cache
	Token    string
	Notify   notify.Sink
	Clock    clock.Clock
	Debounce time.Duration
	Logger   *zap.Logger
	// Unauthorized is called on the loop when the backend rejects the
	// token.
	Unauthorized func()
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = querycache.New(querycache.NewMemory())
	}
	if d.Notify == nil {
		d.Notify = notify.Discard{}
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Debounce <= 0 {
		d.Debounce = debounce.DefaultDelay
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// invalidate drops resource from the cache after a mutation. A failure
// leaves the invalidation pending in the cache, so the reload that follows
// still reads from the API.
func (d Deps) invalidate(ctx context.Context, resource string) {
	if err := d.Cache.Invalidate(ctx, resource); err != nil {
		d.Logger.Warn("cache invalidation pending", zap.String("resource", resource), zap.Error(err))
	}
}

// PermissionsKey is the cache key of the permission list for f as seen
// with token.
func PermissionsKey(token string, f filter.Filter) querycache.Key {
	return querycache.Key{Resource: ResourcePermissions, Owner: querycache.Owner(token), URL: api.PermissionsURL(f)}
}

// GroupsKey is the cache key of the group list as seen with token.
func GroupsKey(token string) querycache.Key {
	return querycache.Key{Resource: ResourceGroups, Owner: querycache.Owner(token), URL: api.GroupsPath}
}

// collection is one remote list shown by a view. Only the answer to the
// most recent load is applied.
type collection[T any] struct {
	key     querycache.Key
	rows    T
	loading bool
	err     error
	seq     uint64
}

// load shows the cached value for key or fetches it off-loop. done runs on
// the loop with the fetch error when the answer is applied.
func (c *collection[T]) load(l *Loop, cache *querycache.Cache, key querycache.Key,
	fetch func(context.Context) (T, error), done func(error)) {
	c.seq++
	seq := c.seq
	c.key = key

	ctx := l.Context()
	if v, ok := querycache.Lookup[T](ctx, cache, key); ok {
		c.rows, c.loading, c.err = v, false, nil
		done(nil)
		return
	}
	c.loading, c.err = true, nil

	go func() {
		v, err := querycache.Fetch(ctx, cache, key, fetch)
		l.Post(func() {
			if seq != c.seq {
				return
			}
			c.loading = false
			if err != nil {
				c.err = err
			} else {
				c.rows = v
			}
			done(err)
		})
	}()
}
