// Package services holds the business logic behind each role's API.
//
// Services defined in this package:
//   - AuthService: login, registration, token rotation, password changes
//   - ActivityService: activity log append/query and live feed publishing
//   - UserService: admin user management
//   - DepartmentService: departments, classes and rosters
//   - StudentService, TeacherService, HODService, FinanceService: role APIs
//   - AdminService: admin dashboard and cache maintenance
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/pkg/cache"
)

// Dashboard cache key prefixes.
const (
	dashPrefix        = "dash:"
	studentDashPrefix = "dash:student:"
	teacherDashPrefix = "dash:teacher:"
	hodDashPrefix     = "dash:hod:"
	financeDashKey    = "dash:finance"
	adminDashKey      = "dash:admin"
)

// DashboardCache is the read-through cache shared by the dashboards.
type DashboardCache struct {
	store cache.Store
	group *cache.Group
	ttl   time.Duration
	log   zerolog.Logger
}

func NewDashboardCache(store cache.Store, ttl time.Duration, log zerolog.Logger) *DashboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardCache{store: store, group: &cache.Group{}, ttl: ttl, log: log}
}

// Store exposes the underlying store.
func (d *DashboardCache) Store() cache.Store {
	return d.store
}

func remember[T any](ctx context.Context, d *DashboardCache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if d == nil {
		return load(ctx)
	}
	return cache.Remember(ctx, d.store, d.group, key, d.ttl, load)
}

// Invalidate drops keys. Failures are logged; a stale dashboard expires on
// its own.
func (d *DashboardCache) Invalidate(ctx context.Context, keys ...string) {
	if d == nil || len(keys) == 0 {
		return
	}
	if err := d.store.Delete(ctx, keys...); err != nil {
		d.log.Warn().Err(err).Strs("keys", keys).Msg("Failed to invalidate dashboard cache")
	}
}

// InvalidatePrefix drops every key under prefix.
func (d *DashboardCache) InvalidatePrefix(ctx context.Context, prefix string) {
	if d == nil {
		return
	}
	if err := d.store.DeletePrefix(ctx, prefix); err != nil {
		d.log.Warn().Err(err).Str("prefix", prefix).Msg("Failed to invalidate dashboard cache")
	}
}

func studentDashKey(studentID int64) string { return cache.Key("dash", "student", studentID) }
func teacherDashKey(teacherID int64) string { return cache.Key("dash", "teacher", teacherID) }
func hodDashKey(departmentID int64) string  { return cache.Key("dash", "hod", departmentID) }

func int64Ptr(v int64) *int64 { return &v }
