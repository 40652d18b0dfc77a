package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

const pqUniqueViolation = "23505"

type rescheduleOccurrenceStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error)
	ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.ScheduledOccurrence, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error)
	FindAtCell(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time, slotID int, excludeID string) (*models.ScheduledOccurrence, error)
	UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, item *models.ScheduledOccurrence, prev models.Placement) error
}

type schedulingConfigReader interface {
	FindSchedulingConfig(ctx context.Context, courseID string) (*models.SchedulingConfig, error)
}

type rescheduleAttemptRecorder interface {
	Create(ctx context.Context, attempt *models.RescheduleAttempt) error
	ListByOccurrence(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, learnerID, courseID string) (bool, error)
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context, courseID string)
}

// RescheduleService applies drag-and-drop moves of recorded lectures.
type RescheduleService struct {
	occurrences rescheduleOccurrenceStore
	configs     schedulingConfigReader
	attempts    rescheduleAttemptRecorder
	tx          txProvider
	generator   *ScheduleGenerator
	schedules   scheduleInvalidator
	enrollments enrollmentChecker
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRescheduleService wires the orchestrator. attempts, schedules and metrics are optional.
func NewRescheduleService(
	occurrences rescheduleOccurrenceStore,
	configs schedulingConfigReader,
	attempts rescheduleAttemptRecorder,
	tx txProvider,
	generator *ScheduleGenerator,
	schedules scheduleInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *RescheduleService {
	if generator == nil {
		generator = NewScheduleGenerator(nil, time.UTC)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		occurrences: occurrences,
		configs:     configs,
		attempts:    attempts,
		tx:          tx,
		generator:   generator,
		schedules:   schedules,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// WithEnrollmentGate restricts learners to occurrences of courses they are enrolled in.
func (s *RescheduleService) WithEnrollmentGate(checker enrollmentChecker) *RescheduleService {
	s.enrollments = checker
	return s
}

// Reschedule validates and applies a move. Policy rejections are reported
// through the result; only unexpected read failures return an error.
func (s *RescheduleService) Reschedule(ctx context.Context, req dto.RescheduleRequest) (*dto.RescheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	targetDate, err := dateutil.ParseDate(req.TargetDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.RequesterRole == models.RoleLearner {
		if err := s.authorizeLearner(ctx, req.RequestedBy, req.OccurrenceID); err != nil {
			return nil, err
		}
	}
	return s.Move(ctx, req.OccurrenceID, targetDate, req.TargetSlotID, req.RequestedBy)
}

// authorizeLearner rejects learners outside the occurrence's course. Unknown
// occurrences fall through so Move reports them as NotFound.
func (s *RescheduleService) authorizeLearner(ctx context.Context, learnerID, occurrenceID string) error {
	if s.enrollments == nil {
		return nil
	}
	occ, err := s.occurrences.FindByID(ctx, nil, occurrenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	enrolled, err := s.enrollments.IsEnrolled(ctx, learnerID, occ.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "learner is not enrolled in this course")
	}
	return nil
}

// Move runs the validation sequence: existence, draggability, target
// validity, no-op, conflict, then the transactional write.
func (s *RescheduleService) Move(ctx context.Context, occurrenceID string, targetDate time.Time, targetSlotID int, requestedBy string) (*dto.RescheduleResult, error) {
	occ, err := s.occurrences.FindByID(ctx, nil, occurrenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.reject(ctx, nil, requestedBy, nil, models.ReasonNotFound, "occurrence not found"), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}

	if !IsDraggable(*occ) {
		return s.reject(ctx, occ, requestedBy, nil, models.ReasonNotDraggable, dragRejection(*occ)), nil
	}

	if targetDate.IsZero() {
		return s.reject(ctx, occ, requestedBy, nil, models.ReasonNotFound, "target date is required"), nil
	}
	target, err := s.generator.Placement(targetDate, targetSlotID)
	if err != nil {
		return s.reject(ctx, occ, requestedBy, nil, models.ReasonNotFound, "target slot not found"), nil
	}
	cfg, err := s.configs.FindSchedulingConfig(ctx, occ.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling config")
	}
	if !cfg.HasSlot(targetSlotID) {
		return s.reject(ctx, occ, requestedBy, &target, models.ReasonNotFound, "target slot is not offered by this course"), nil
	}

	if occ.SameCell(target.ScheduledDate, target.SlotID) {
		return s.reject(ctx, occ, requestedBy, &target, models.ReasonNoOp, "occurrence already sits in the target slot"), nil
	}

	set, err := s.occurrences.ListByCourse(ctx, nil, occ.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if HasConflict(set, target.ScheduledDate, target.SlotID, occ.ID) {
		return s.reject(ctx, occ, requestedBy, &target, models.ReasonSlotConflict, "target slot is already occupied"), nil
	}

	return s.commit(ctx, occ, target, requestedBy), nil
}

// Attempts returns the audit trail of an occurrence, newest first.
func (s *RescheduleService) Attempts(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error) {
	if occurrenceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "occurrence id is required")
	}
	if s.attempts == nil {
		return []models.RescheduleAttempt{}, nil
	}
	attempts, err := s.attempts.ListByOccurrence(ctx, occurrenceID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reschedule attempts")
	}
	return attempts, nil
}

// commit re-validates under a row lock and writes the new placement. The
// occurrence is restored to its snapshot when any step fails.
func (s *RescheduleService) commit(ctx context.Context, occ *models.ScheduledOccurrence, target models.Placement, requestedBy string) *dto.RescheduleResult {
	snapshot := *occ

	reason, message, err := s.write(ctx, occ, target)
	if reason != "" {
		*occ = snapshot
		if err != nil {
			s.logger.Error("reschedule write failed",
				zap.String("occurrence_id", occ.ID),
				zap.String("course_id", occ.CourseID),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		}
		return s.reject(ctx, occ, requestedBy, &target, reason, message)
	}

	s.record(ctx, &snapshot, requestedBy, &target, "")
	s.metrics.ObserveReschedule("")
	if s.schedules != nil {
		s.schedules.Invalidate(ctx, occ.CourseID)
	}
	s.logger.Info("occurrence rescheduled",
		zap.String("occurrence_id", occ.ID),
		zap.String("course_id", occ.CourseID),
		zap.String("from", dateutil.Format(snapshot.ScheduledDate)),
		zap.Int("from_slot", snapshot.SlotID),
		zap.String("to", dateutil.Format(target.ScheduledDate)),
		zap.Int("to_slot", target.SlotID),
	)
	return &dto.RescheduleResult{Success: true, Occurrence: occ}
}

func (s *RescheduleService) write(ctx context.Context, occ *models.ScheduledOccurrence, target models.Placement) (reason models.RescheduleReason, message string, err error) {
	if s.tx == nil {
		return models.ReasonPersistenceFailure, "transaction provider missing", nil
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return models.ReasonPersistenceFailure, "failed to begin transaction", err
	}
	defer func() {
		if reason != "" {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.occurrences.LockByID(ctx, tx, occ.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReasonNotFound, "occurrence not found", nil
		}
		return models.ReasonPersistenceFailure, "failed to lock occurrence", err
	}
	if locked.SameCell(target.ScheduledDate, target.SlotID) {
		return models.ReasonNoOp, "occurrence already sits in the target slot", nil
	}

	if _, err = s.occurrences.FindAtCell(ctx, tx, occ.CourseID, target.ScheduledDate, target.SlotID, occ.ID); err == nil {
		return models.ReasonSlotConflict, "target slot is already occupied", nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.ReasonPersistenceFailure, "failed to check target slot", err
	}

	prev := locked.Placement()
	occ.MoveTo(target)
	if err = s.occurrences.UpdatePlacement(ctx, tx, occ, prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return models.ReasonSlotConflict, "target slot is already occupied", nil
		}
		return models.ReasonPersistenceFailure, "failed to persist new placement", err
	}
	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.ReasonSlotConflict, "target slot is already occupied", nil
		}
		return models.ReasonPersistenceFailure, "failed to commit new placement", err
	}
	return "", "", nil
}

func (s *RescheduleService) reject(ctx context.Context, occ *models.ScheduledOccurrence, requestedBy string, target *models.Placement, reason models.RescheduleReason, message string) *dto.RescheduleResult {
	s.metrics.ObserveReschedule(string(reason))
	fields := []zap.Field{zap.String("reason", string(reason)), zap.String("detail", message)}
	if occ != nil {
		fields = append(fields, zap.String("occurrence_id", occ.ID), zap.String("course_id", occ.CourseID))
		s.record(ctx, occ, requestedBy, target, reason)
	}
	s.logger.Info("reschedule rejected", fields...)

	result := &dto.RescheduleResult{Success: false, Reason: reason, Message: message}
	if occ != nil {
		current := *occ
		result.Occurrence = &current
	}
	return result
}

// record stores the attempt; audit failures never change the outcome.
func (s *RescheduleService) record(ctx context.Context, from *models.ScheduledOccurrence, requestedBy string, target *models.Placement, reason models.RescheduleReason) {
	if s.attempts == nil {
		return
	}
	attempt := &models.RescheduleAttempt{
		OccurrenceID:  from.ID,
		CourseID:      from.CourseID,
		RequestedBy:   requestedBy,
		OldDate:       from.ScheduledDate,
		OldSlotID:     from.SlotID,
		Success:       reason == "",
		FailureReason: string(reason),
	}
	if target != nil {
		date := target.ScheduledDate
		slot := target.SlotID
		attempt.NewDate = &date
		attempt.NewSlotID = &slot
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Warn("failed to record reschedule attempt", zap.String("occurrence_id", from.ID), zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
