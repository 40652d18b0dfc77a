package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	"github.com/noah-isme/lms-scheduling-api/pkg/jobs"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

// JobTypeRegenerateSchedule is the queue job type handled by ScheduleService.
const JobTypeRegenerateSchedule = "schedule.regenerate"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SaveSchedulingConfig(ctx context.Context, cfg models.SchedulingConfig) error
}

type scheduleOccurrenceStore interface {
	ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.ScheduledOccurrence, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, items []models.ScheduledOccurrence) (int, error)
	DeleteGenerated(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
}

// ScheduleService materialises, caches and regenerates course schedules.
type ScheduleService struct {
	courses     courseStore
	occurrences scheduleOccurrenceStore
	tx          txProvider
	generator   *ScheduleGenerator
	cache       scheduleCache
	cacheTTL    time.Duration
	queue       jobEnqueuer
	metrics     *MetricsService
	logger      *zap.Logger
}

// ScheduleServiceConfig tunes caching.
type ScheduleServiceConfig struct {
	CacheTTL time.Duration
}

// NewScheduleService wires schedule dependencies. cache, queue and metrics are optional.
func NewScheduleService(
	courses courseStore,
	occurrences scheduleOccurrenceStore,
	tx txProvider,
	generator *ScheduleGenerator,
	cache scheduleCache,
	queue jobEnqueuer,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ScheduleServiceConfig,
) *ScheduleService {
	if generator == nil {
		generator = NewScheduleGenerator(nil, time.UTC)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &ScheduleService{
		courses:     courses,
		occurrences: occurrences,
		tx:          tx,
		generator:   generator,
		cache:       cache,
		cacheTTL:    cfg.CacheTTL,
		queue:       queue,
		metrics:     metrics,
		logger:      logger,
	}
}

// ScheduleCacheKey is the cache key of a course schedule.
func ScheduleCacheKey(courseID string) string {
	return "schedule:course:" + courseID
}

// GetSchedule returns all occurrences of a course, generating and persisting
// them on first access. The boolean reports a cache hit.
func (s *ScheduleService) GetSchedule(ctx context.Context, courseID string) (*dto.CourseScheduleResponse, bool, error) {
	if courseID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}

	key := ScheduleCacheKey(courseID)
	if s.cache != nil {
		var cached dto.CourseScheduleResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			cached.Generated = false
			return &cached, true, nil
		}
	}

	existing, err := s.occurrences.ListByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if len(existing) > 0 {
		resp := &dto.CourseScheduleResponse{CourseID: courseID, Occurrences: existing}
		s.storeCache(ctx, key, resp)
		return resp, false, nil
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	generated, err := s.generator.Generate(course, course.Scheduling)
	if err != nil {
		s.metrics.ObserveGeneration(appErrors.FromError(err).Code)
		return nil, false, err
	}

	persisted, err := s.materialise(ctx, courseID, generated)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveGeneration("generated")
	s.logger.Info("schedule materialised", zap.String("course_id", courseID), zap.Int("occurrences", len(persisted)))

	resp := &dto.CourseScheduleResponse{CourseID: courseID, Generated: true, Occurrences: persisted}
	s.storeCache(ctx, key, resp)
	return resp, false, nil
}

// materialise inserts the generated set and re-reads the stored rows so that
// concurrent first requests converge on one persisted schedule.
func (s *ScheduleService) materialise(ctx context.Context, courseID string, generated []models.ScheduledOccurrence) (_ []models.ScheduledOccurrence, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("schedule_materialise", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.occurrences.InsertBatch(ctx, tx, generated); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to persist schedule")
		return nil, err
	}
	stored, err := s.occurrences.ListByCourse(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload schedule")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to commit schedule")
		return nil, err
	}
	return stored, nil
}

// Regenerate rebuilds the generated part of a course schedule. Rescheduled
// occurrences are kept untouched and every other row is replaced by the
// fresh grid.
func (s *ScheduleService) Regenerate(ctx context.Context, courseID string) (_ *dto.RegenerateScheduleResponse, err error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	fresh, err := s.generator.Generate(course, course.Scheduling)
	if err != nil {
		s.metrics.ObserveGeneration(appErrors.FromError(err).Code)
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("schedule_regenerate", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stored, err := s.occurrences.ListByCourse(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
		return nil, err
	}
	kept, insert := ReconcileRescheduled(fresh, stored)

	removed, err := s.occurrences.DeleteGenerated(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to clear generated occurrences")
		return nil, err
	}
	inserted, err := s.occurrences.InsertBatch(ctx, tx, insert)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to persist regenerated occurrences")
		return nil, err
	}
	result, err := s.occurrences.ListByCourse(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload schedule")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to commit regenerated schedule")
		return nil, err
	}

	s.Invalidate(ctx, courseID)
	s.metrics.ObserveGeneration("regenerated")
	s.logger.Info("schedule regenerated",
		zap.String("course_id", courseID),
		zap.Int("preserved", len(kept)),
		zap.Int("removed", removed),
		zap.Int("inserted", inserted),
	)

	return &dto.RegenerateScheduleResponse{
		CourseID:    courseID,
		Preserved:   len(kept),
		Removed:     removed,
		Inserted:    inserted,
		Occurrences: result,
	}, nil
}

// UpdateSchedulingConfig replaces the weekly configuration of a course and
// regenerates its schedule. Rescheduled occurrences survive the rebuild.
func (s *ScheduleService) UpdateSchedulingConfig(ctx context.Context, courseID string, req dto.SchedulingConfigRequest) (*dto.RegenerateScheduleResponse, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	startDate, err := dateutil.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfig, "startDate must be YYYY-MM-DD")
	}
	cfg := models.SchedulingConfig{
		CourseID:        courseID,
		WeekDay:         time.Weekday(req.WeekDay),
		StartDate:       startDate,
		SelectedSlotIDs: req.SelectedSlotIDs,
		TotalWeeks:      req.TotalWeeks,
	}
	if err := s.generator.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	stored, err := s.occurrences.ListByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	for _, occ := range stored {
		if occ.IsRescheduled && !cfg.HasSlot(occ.SlotID) {
			return nil, appErrors.Clone(appErrors.ErrInvalidConfig,
				fmt.Sprintf("slot %d still holds rescheduled occurrence %s", occ.SlotID, occ.ID))
		}
	}
	if err := s.courses.SaveSchedulingConfig(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "failed to save scheduling configuration")
	}
	s.logger.Info("scheduling configuration updated",
		zap.String("course_id", courseID),
		zap.Int("week_day", req.WeekDay),
		zap.Ints("slots", req.SelectedSlotIDs),
		zap.Int("total_weeks", req.TotalWeeks),
	)
	return s.Regenerate(ctx, courseID)
}

// RegenerateAsync queues a regeneration and returns the job id.
func (s *ScheduleService) RegenerateAsync(ctx context.Context, courseID string) (*dto.RegenerateJobResponse, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "regeneration queue unavailable")
	}
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	jobID, err := s.queue.Enqueue(jobs.Job{Type: JobTypeRegenerateSchedule, Payload: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue regeneration")
	}
	return &dto.RegenerateJobResponse{JobID: jobID, CourseID: courseID}, nil
}

// HandleRegenerateJob is the queue handler for JobTypeRegenerateSchedule.
// Policy failures are logged and not retried.
func (s *ScheduleService) HandleRegenerateJob(ctx context.Context, job jobs.Job) error {
	courseID, ok := job.Payload.(string)
	if !ok || courseID == "" {
		s.logger.Error("invalid regenerate job payload", zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.Regenerate(ctx, courseID)
	if err == nil {
		return nil
	}
	appErr := appErrors.FromError(err)
	if appErr.Status < 500 {
		s.logger.Warn("regenerate job rejected", zap.String("job_id", job.ID), zap.String("course_id", courseID), zap.String("code", appErr.Code))
		return nil
	}
	return fmt.Errorf("regenerate course %s: %w", courseID, err)
}

// Invalidate drops the cached schedule of a course.
func (s *ScheduleService) Invalidate(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ScheduleCacheKey(courseID)); err != nil {
		s.logger.Warn("schedule cache invalidation failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *ScheduleService) storeCache(ctx context.Context, key string, resp *dto.CourseScheduleResponse) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
		s.logger.Warn("schedule cache store failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ScheduleService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
