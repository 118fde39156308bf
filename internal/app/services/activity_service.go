package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/repositories"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// Activity actions recorded by the services.
const (
	ActionLogin           = "auth.login"
	ActionLogout          = "auth.logout"
	ActionRegister        = "auth.register"
	ActionPasswordChanged = "auth.password.changed"
	ActionUserCreated     = "user.created"
	ActionUserUpdated     = "user.updated"
	ActionUserStatus      = "user.status.changed"
	ActionUserDeleted     = "user.deleted"
	ActionDeptCreated     = "department.created"
	ActionDeptUpdated     = "department.updated"
	ActionDeptDeleted     = "department.deleted"
	ActionClassCreated    = "class.created"
	ActionClassUpdated    = "class.updated"
	ActionClassDeleted    = "class.deleted"
	ActionRosterUpdated   = "class.roster.updated"
	ActionCourseCreated   = "course.created"
	ActionCourseUpdated   = "course.updated"
	ActionCourseDeleted   = "course.deleted"
	ActionTimetableAdded  = "timetable.created"
	ActionTimetableRemove = "timetable.deleted"
	ActionAttendanceMark  = "attendance.marked"
	ActionGradeCreated    = "grade.created"
	ActionGradeUpdated    = "grade.updated"
	ActionFeeCreated      = "fee.created"
	ActionFeeUpdated      = "fee.updated"
	ActionFeeDeleted      = "fee.deleted"
	ActionPaymentRecorded = "fee.payment.recorded"
	ActionCacheFlushed    = "cache.flushed"
)

// ActivityPublisher receives every stored entry, e.g. the live feed hub.
type ActivityPublisher interface {
	Publish(entry models.ActivityLog)
}

// ActivityService appends to and queries the activity log.
type ActivityService interface {
	Log(ctx context.Context, entry *models.ActivityLog) error
	Record(ctx context.Context, actor *models.Actor, action, entityType string, entityID *int64, metadata map[string]interface{})
	List(ctx context.Context, filter models.ActivityFilter, page, size int) (*dto.PaginatedResponse, error)
	Recent(ctx context.Context, limit int) ([]models.ActivityLog, error)
	ByEntity(ctx context.Context, entityType string, entityID int64) ([]models.ActivityLog, error)
	ForUser(ctx context.Context, userID int64, page, size int) (*dto.PaginatedResponse, error)
	Summary(ctx context.Context, since time.Time) ([]models.ActionCount, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// ActivityMark tells the request recorder middleware that a handler already
// logged a domain event for the request.
type ActivityMark struct {
	recorded atomic.Bool
}

// Recorded reports whether an entry was logged under this mark.
func (m *ActivityMark) Recorded() bool { return m.recorded.Load() }

type activityMarkKey struct{}

// WithActivityMark attaches a fresh mark to ctx.
func WithActivityMark(ctx context.Context) (context.Context, *ActivityMark) {
	m := &ActivityMark{}
	return context.WithValue(ctx, activityMarkKey{}, m), m
}

// MarkActivity flags the mark attached to ctx, if any.
func MarkActivity(ctx context.Context) {
	if m, ok := ctx.Value(activityMarkKey{}).(*ActivityMark); ok {
		m.recorded.Store(true)
	}
}

// ActivityServiceImpl implements ActivityService.
type ActivityServiceImpl struct {
	repo        *repositories.ActivityRepository
	publisher   ActivityPublisher
	recentLimit int
	logger      zerolog.Logger
}

func NewActivityService(repo *repositories.ActivityRepository, publisher ActivityPublisher, recentLimit int, logger zerolog.Logger) *ActivityServiceImpl {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &ActivityServiceImpl{repo: repo, publisher: publisher, recentLimit: recentLimit, logger: logger}
}

// Log stores entry and publishes it.
func (s *ActivityServiceImpl) Log(ctx context.Context, entry *models.ActivityLog) error {
	entry.Action = strings.TrimSpace(entry.Action)
	entry.EntityType = strings.TrimSpace(entry.EntityType)
	if entry.Action == "" || entry.EntityType == "" {
		return apperrors.NewValidationError("action and entityType are required")
	}
	if entry.UserAgent != nil && len(*entry.UserAgent) > 255 {
		ua := (*entry.UserAgent)[:255]
		entry.UserAgent = &ua
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return err
	}
	MarkActivity(ctx)
	if s.publisher != nil {
		s.publisher.Publish(*entry)
	}
	return nil
}

// Record logs an event on behalf of actor. A failure is logged and otherwise
// ignored so that it never fails the operation being audited.
func (s *ActivityServiceImpl) Record(ctx context.Context, actor *models.Actor, action, entityType string, entityID *int64, metadata map[string]interface{}) {
	entry := &models.ActivityLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	}
	if actor != nil {
		if actor.UserID > 0 {
			entry.UserID = int64Ptr(actor.UserID)
		}
		if actor.IPAddress != "" {
			ip := actor.IPAddress
			entry.IPAddress = &ip
		}
		if actor.UserAgent != "" {
			ua := actor.UserAgent
			entry.UserAgent = &ua
		}
	}
	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Str("entityType", entityType).Msg("Failed to record activity")
	}
}

func (s *ActivityServiceImpl) List(ctx context.Context, filter models.ActivityFilter, page, size int) (*dto.PaginatedResponse, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperrors.NewValidationError("'to' must not be before 'from'")
	}
	offset, limit := helpers.CalculateOffsetLimit(page, size)
	logs, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, err
	}
	resp := helpers.NewPaginatedResponse(logs, total, page, int(limit))
	return &resp, nil
}

func (s *ActivityServiceImpl) Recent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > helpers.MaxPageSize {
		limit = s.recentLimit
	}
	return s.repo.Recent(ctx, uint64(limit))
}

func (s *ActivityServiceImpl) ByEntity(ctx context.Context, entityType string, entityID int64) ([]models.ActivityLog, error) {
	if strings.TrimSpace(entityType) == "" || entityID <= 0 {
		return nil, apperrors.NewValidationError("entity type and a positive id are required")
	}
	return s.repo.ByEntity(ctx, entityType, entityID, helpers.MaxPageSize)
}

func (s *ActivityServiceImpl) ForUser(ctx context.Context, userID int64, page, size int) (*dto.PaginatedResponse, error) {
	return s.List(ctx, models.ActivityFilter{UserID: &userID}, page, size)
}

func (s *ActivityServiceImpl) Summary(ctx context.Context, since time.Time) ([]models.ActionCount, error) {
	return s.repo.CountByAction(ctx, since, 10)
}

func (s *ActivityServiceImpl) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("cutoff", olderThan).Msg("Pruned activity logs")
	}
	return n, nil
}
