package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jmailbox/internal/models"
	"jmailbox/internal/repository"
)

type EventLogService struct {
	journal repository.JournalRepo
	now     func() time.Time
}

func NewEventLogService(journal repository.JournalRepo) *EventLogService {
	return &EventLogService{journal: journal, now: time.Now}
}

// ErrInvalidFilter wraps every rejected query parameter.
var ErrInvalidFilter = errors.New("invalid filter")

var (
	errInvalidTimeRange = fmt.Errorf("%w: From must be <= To", ErrInvalidFilter)
	errInvalidKind      = fmt.Errorf("%w: unknown device kind", ErrInvalidFilter)
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeLevel trims spaces and uppercases a level filter value. Devices
// may report any level, so every non-empty value is a valid filter.
func normalizeLevel(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeLimit applies the default and caps the window size.
func normalizeLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

type logQuery struct {
	from, to time.Time
	levels   map[string]struct{}
	devices  map[string]struct{}
	limit    int
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f LogFilter) (logQuery, error) {
	q := logQuery{
		from:  normalizeToUTC(f.From),
		to:    normalizeToUTC(f.To),
		limit: normalizeLimit(f.Limit, DefaultLogLimit, MaxLogLimit),
	}
	if !q.from.IsZero() && !q.to.IsZero() && q.from.After(q.to) {
		return logQuery{}, errInvalidTimeRange
	}

	for _, l := range f.Levels {
		l = normalizeLevel(l)
		if l == "" {
			continue
		}
		if q.levels == nil {
			q.levels = make(map[string]struct{})
		}
		q.levels[l] = struct{}{}
	}
	for _, d := range f.Devices {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if q.devices == nil {
			q.devices = make(map[string]struct{})
		}
		q.devices[d] = struct{}{}
	}
	return q, nil
}

func (q logQuery) match(e models.LogEntry) bool {
	if q.levels != nil {
		if _, ok := q.levels[e.Level]; !ok {
			return false
		}
	}
	if q.devices != nil {
		if _, ok := q.devices[e.Device]; !ok {
			return false
		}
	}
	ts := e.Timestamp.UTC()
	if !q.from.IsZero() && ts.Before(q.from) {
		return false
	}
	if !q.to.IsZero() && ts.After(q.to) {
		return false
	}
	return true
}

// Logs takes the most recent Limit lines, filters them and returns the
// survivors newest first.
func (s *EventLogService) Logs(_ context.Context, f LogFilter) ([]models.LogEntry, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}

	all := s.journal.Logs()
	window := all[max(0, len(all)-q.limit):]

	out := make([]models.LogEntry, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		if q.match(window[i]) {
			out = append(out, window[i])
		}
	}
	return out, nil
}

// LevelCounts counts levels over the most recent window lines.
func (s *EventLogService) LevelCounts(_ context.Context, window int) (map[string]int, error) {
	window = normalizeLimit(window, LevelWindow, MaxLogLimit)
	all := s.journal.Logs()
	counts := make(map[string]int)
	for _, e := range all[max(0, len(all)-window):] {
		counts[e.Level]++
	}
	return counts, nil
}

// Alerts summarizes the whole alert journal and returns the most recent
// Limit alerts, newest first. "Today" is the calendar day of the local clock.
func (s *EventLogService) Alerts(_ context.Context, f AlertFilter) (AlertSummary, error) {
	limit := normalizeLimit(f.Limit, DefaultAlertLimit, MaxLogLimit)
	all := s.journal.Alerts()

	now := s.now()
	y, m, d := now.Date()

	sum := AlertSummary{Total: len(all), Alerts: make([]models.AlertEntry, 0, min(limit, len(all)))}
	for _, a := range all {
		if a.Severity >= models.SeverityHigh {
			sum.High++
		}
		ay, am, ad := a.Timestamp.In(now.Location()).Date()
		if ay == y && am == m && ad == d {
			sum.Today++
		}
	}
	for i := len(all) - 1; i >= 0 && len(sum.Alerts) < limit; i-- {
		sum.Alerts = append(sum.Alerts, all[i])
	}
	return sum, nil
}
