package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// ReportStorage implements the ReportStorage interface for Badger.
// Reports are immutable once stored.
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// Save persists a report keyed by its query id
func (s *ReportStorage) Save(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil || report.QueryID == "" {
		return fmt.Errorf("report requires a query id")
	}

	err := s.db.Store().Insert(report.QueryID, report)
	if err == badgerhold.ErrKeyExists {
		return fmt.Errorf("report %s already exists", report.QueryID)
	}
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Debug().
		Str("query_id", report.QueryID).
		Str("stock_code", report.StockCode).
		Msg("Report saved")
	return nil
}

// GetByQueryID returns one report or models.ErrNotFound
func (s *ReportStorage) GetByQueryID(ctx context.Context, queryID string) (*models.AnalysisReport, error) {
	var report models.AnalysisReport
	err := s.db.Store().Get(queryID, &report)
	if err == badgerhold.ErrNotFound {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// Query returns reports for a code within [start, end], newest first,
// with offset/limit pagination. Zero times mean unbounded.
func (s *ReportStorage) Query(ctx context.Context, code string, start, end time.Time, offset, limit int) ([]*models.AnalysisReport, int, error) {
	query := badgerhold.Where("StockCode").Eq(code).Index("StockCode")
	if !start.IsZero() {
		query = query.And("CreatedAt").Ge(start)
	}
	if !end.IsZero() {
		query = query.And("CreatedAt").Le(end)
	}

	total, err := s.db.Store().Count(&models.AnalysisReport{}, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	paged := query.SortBy("CreatedAt").Reverse()
	if offset > 0 {
		paged = paged.Skip(offset)
	}
	if limit > 0 {
		paged = paged.Limit(limit)
	}

	var reports []*models.AnalysisReport
	if err := s.db.Store().Find(&reports, paged); err != nil {
		return nil, 0, fmt.Errorf("failed to query reports: %w", err)
	}
	return reports, int(total), nil
}
