package service

import (
	"context"
	"fmt"
	"strings"

	"battery_dashboard/internal/models"
	"battery_dashboard/internal/repository"
)

type EventLogService struct {
	activity repository.ActivityLog
}

func NewEventLogService(activity repository.ActivityLog) *EventLogService {
	return &EventLogService{activity: activity}
}

// normalizeAndValidateFilter lowercases the kind and source and checks they are known.
func normalizeAndValidateFilter(f LogFilter) (LogFilter, error) {
	f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
	f.Source = strings.ToLower(strings.TrimSpace(f.Source))

	switch models.LogKind(f.Kind) {
	case "", models.KindInfo, models.KindWarning, models.KindError, models.KindSuccess:
	default:
		return f, fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, f.Kind)
	}
	switch f.Source {
	case "", models.SourceLocal, models.SourceDevice:
	default:
		return f, fmt.Errorf("%w: unknown source %q", ErrInvalidFilter, f.Source)
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	if !f.Since.IsZero() {
		f.Since = f.Since.UTC()
	}
	return f, nil
}

// List returns matching entries, most recent first.
func (s *EventLogService) List(_ context.Context, f LogFilter) ([]models.ActivityEntry, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	all := s.activity.List()
	out := make([]models.ActivityEntry, 0, len(all))
	for _, e := range all {
		if f.Kind != "" && string(e.Kind) != f.Kind {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
