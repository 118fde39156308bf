package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
)

const (
	adminActivityWindow = 7 * 24 * time.Hour
	adminRecentActivity = 10
)

// AdminService backs the admin dashboard and cache maintenance.
type AdminService interface {
	Dashboard(ctx context.Context) (*dto.AdminDashboard, error)
	FlushCache(ctx context.Context, actor *models.Actor) error
}

// AdminServiceImpl implements AdminService.
type AdminServiceImpl struct {
	userRepo   *repositories.UserRepository
	deptRepo   *repositories.DepartmentRepository
	classRepo  *repositories.ClassRepository
	courseRepo *repositories.CourseRepository
	activity   ActivityService
	cache      *DashboardCache
	logger     zerolog.Logger
	now        func() time.Time
}

func NewAdminService(repos *repositories.Repositories, activity ActivityService, cache *DashboardCache, logger zerolog.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{
		userRepo:   repos.UserRepository,
		deptRepo:   repos.DepartmentRepository,
		classRepo:  repos.ClassRepository,
		courseRepo: repos.CourseRepository,
		activity:   activity,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Dashboard returns the cached counts plus live cache statistics.
func (s *AdminServiceImpl) Dashboard(ctx context.Context) (*dto.AdminDashboard, error) {
	d, err := remember(ctx, s.cache, adminDashKey, s.buildDashboard)
	if err != nil {
		return nil, err
	}
	out := *d
	if s.cache != nil {
		st := s.cache.Store().Stats()
		out.Cache = dto.CacheStats{Backend: st.Backend, Hits: st.Hits, Misses: st.Misses, Keys: st.Keys}
	}
	return &out, nil
}

func (s *AdminServiceImpl) buildDashboard(ctx context.Context) (*dto.AdminDashboard, error) {
	byRole, err := s.userRepo.CountByRole(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range models.AllRoles {
		if _, ok := byRole[r]; !ok {
			byRole[r] = 0
		}
	}
	depts, err := s.deptRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := s.classRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	courses, err := s.courseRepo.Count(ctx, nil)
	if err != nil {
		return nil, err
	}
	summary, err := s.activity.Summary(ctx, s.now().Add(-adminActivityWindow))
	if err != nil {
		return nil, err
	}
	recent, err := s.activity.Recent(ctx, adminRecentActivity)
	if err != nil {
		return nil, err
	}

	return &dto.AdminDashboard{
		UsersByRole:      byRole,
		DepartmentCount:  depts,
		ClassCount:       classes,
		CourseCount:      courses,
		ActivityByAction: summary,
		RecentActivity:   recent,
	}, nil
}

// FlushCache empties the whole cache store.
func (s *AdminServiceImpl) FlushCache(ctx context.Context, actor *models.Actor) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Store().Clear(ctx); err != nil {
		return fmt.Errorf("error flushing cache: %w", err)
	}
	s.logger.Info().Int64("userID", actor.UserID).Msg("Cache flushed")
	s.activity.Record(ctx, actor, ActionCacheFlushed, "cache", nil, nil)
	return nil
}
