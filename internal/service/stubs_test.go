package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/jobs"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// occurrenceStoreStub is an in-memory occurrence table keyed by id.
type occurrenceStoreStub struct {
	mu        sync.Mutex
	rows      map[string]models.ScheduledOccurrence
	insertErr error
	updateErr error
	listErr   error
	// onLock runs after the row lock is taken, simulating a concurrent writer.
	onLock  func(s *occurrenceStoreStub)
	inserts int
	deletes int
}

func newOccurrenceStoreStub(items ...models.ScheduledOccurrence) *occurrenceStoreStub {
	s := &occurrenceStoreStub{rows: map[string]models.ScheduledOccurrence{}}
	for _, item := range items {
		s.rows[item.ID] = item
	}
	return s
}

func (s *occurrenceStoreStub) all() []models.ScheduledOccurrence {
	out := make([]models.ScheduledOccurrence, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	SortOccurrences(out)
	return out
}

func (s *occurrenceStoreStub) get(id string) models.ScheduledOccurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *occurrenceStoreStub) ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.ScheduledOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ScheduledOccurrence
	for _, row := range s.all() {
		if row.CourseID == courseID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *occurrenceStoreStub) ListInRange(ctx context.Context, courseIDs []string, from, to time.Time) ([]models.ScheduledOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range courseIDs {
		wanted[id] = true
	}
	out := []models.ScheduledOccurrence{}
	for _, row := range s.all() {
		if wanted[row.CourseID] && !row.ScheduledDate.Before(from) && !row.ScheduledDate.After(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *occurrenceStoreStub) NextDateFrom(ctx context.Context, courseIDs []string, from time.Time) (time.Time, bool, error) {
	items, _ := s.ListInRange(ctx, courseIDs, from, from.AddDate(100, 0, 0))
	if len(items) == 0 {
		return time.Time{}, false, nil
	}
	return items[0].ScheduledDate, true, nil
}

func (s *occurrenceStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (s *occurrenceStoreStub) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error) {
	if s.onLock != nil {
		s.onLock(s)
	}
	return s.FindByID(ctx, exec, id)
}

func (s *occurrenceStoreStub) FindAtCell(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time, slotID int, excludeID string) (*models.ScheduledOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.CourseID == courseID && row.ID != excludeID && row.SameCell(date, slotID) {
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *occurrenceStoreStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, items []models.ScheduledOccurrence) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	inserted := 0
	for _, item := range items {
		if _, exists := s.rows[item.ID]; exists {
			continue
		}
		s.rows[item.ID] = item
		inserted++
	}
	s.inserts += inserted
	return inserted, nil
}

func (s *occurrenceStoreStub) DeleteGenerated(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, row := range s.rows {
		if row.CourseID == courseID && !row.IsRescheduled {
			delete(s.rows, id)
			removed++
		}
	}
	s.deletes += removed
	return removed, nil
}

func (s *occurrenceStoreStub) UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, item *models.ScheduledOccurrence, prev models.Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[item.ID]
	if !ok || !row.SameCell(prev.ScheduledDate, prev.SlotID) {
		return sql.ErrNoRows
	}
	s.rows[item.ID] = *item
	return nil
}

type courseReaderStub struct {
	courses map[string]*models.Course
	err     error
	saveErr error
}

func (s courseReaderStub) SaveSchedulingConfig(ctx context.Context, cfg models.SchedulingConfig) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if course, ok := s.courses[cfg.CourseID]; ok {
		course.Scheduling = &cfg
	}
	return nil
}

func (s courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	course, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func (s courseReaderStub) FindSchedulingConfig(ctx context.Context, courseID string) (*models.SchedulingConfig, error) {
	if course, ok := s.courses[courseID]; ok {
		return course.Scheduling, nil
	}
	return nil, nil
}

type attemptRecorderStub struct {
	attempts []models.RescheduleAttempt
	err      error
}

func (s *attemptRecorderStub) Create(ctx context.Context, attempt *models.RescheduleAttempt) error {
	s.attempts = append(s.attempts, *attempt)
	return s.err
}

func (s *attemptRecorderStub) ListByOccurrence(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error) {
	var out []models.RescheduleAttempt
	for i := len(s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.attempts[i].OccurrenceID == occurrenceID {
			out = append(out, s.attempts[i])
		}
	}
	return out, nil
}

// cacheStub keeps JSON payloads in a map like the redis repository does.
type cacheStub struct {
	entries map[string][]byte
	deleted []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: map[string][]byte{}}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

type invalidatorStub struct {
	courses []string
}

func (s *invalidatorStub) Invalidate(ctx context.Context, courseID string) {
	s.courses = append(s.courses, courseID)
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (s *enqueuerStub) Enqueue(job jobs.Job) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	job.ID = "job-1"
	s.jobs = append(s.jobs, job)
	return job.ID, nil
}
