package services

import (
	"context"
	"fmt"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// ReportMailer sends a report to an operator address.
type ReportMailer interface {
	SendReport(ctx context.Context, to string, report *model.Report) error
}

// ReportService assembles the queued/removed read-model.
type ReportService struct {
	store  store.Store
	mailer ReportMailer
}

func NewReportService(s store.Store, mailer ReportMailer) *ReportService {
	return &ReportService{store: s, mailer: mailer}
}

// BuildReport lists queued records and removal log entries, optionally
// restricted to one robot. Entries of deleted robots still appear.
func (s *ReportService) BuildReport(ctx context.Context, robotID string) (*model.Report, error) {
	queued, err := s.store.PurgeRecords().List(ctx, robotID)
	if err != nil {
		return nil, fmt.Errorf("list purge records: %w", err)
	}
	removed, err := s.store.PurgeLog().List(ctx, robotID)
	if err != nil {
		return nil, fmt.Errorf("list purge log: %w", err)
	}
	if queued == nil {
		queued = []*model.PurgeRecord{}
	}
	if removed == nil {
		removed = []*model.PurgeLogEntry{}
	}
	return &model.Report{Queued: queued, Removed: removed}, nil
}

// EmailReport builds the report and mails it to to.
func (s *ReportService) EmailReport(ctx context.Context, robotID, to string) (*model.Report, error) {
	report, err := s.BuildReport(ctx, robotID)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendReport(ctx, to, report); err != nil {
		return nil, err
	}
	return report, nil
}
