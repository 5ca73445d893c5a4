// Package attendance stores raw attendance events locally and computes
// per-subject summaries on read.
//
// Events are kept in one record per student (the event log), keyed by
// (date, subject) within the log so re-marking the same class
// overwrites rather than duplicates. Summaries join the log against a
// subject/credit catalog: a timetable file when one exists, a default
// subject list otherwise.
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/campusync/campusync/internal/netcheck"
	"github.com/campusync/campusync/internal/store"
)

// Category is the local store category attendance logs live in.
const Category = "attendance"

// Attendance statuses. An unmarked student is never counted present.
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// EligibilityThreshold is the minimum percentage for exam eligibility.
const EligibilityThreshold = 75.0

// Event is one recorded class for one student.
type Event struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Subject  string `json:"subject"`
	Status   string `json:"status"`
	MarkedBy string `json:"markedBy,omitempty"`
}

// SubjectSummary is the computed aggregate for one subject.
type SubjectSummary struct {
	Subject    Subject `json:"subject"`
	Total      int     `json:"total"`
	Attended   int     `json:"attended"`
	Percentage float64 `json:"percentage"`
	Eligible   bool    `json:"eligible"`
}

// StudentResult is one student's outcome in a class-wide submission.
type StudentResult struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// SubmitResult is the outcome of a class-wide submission.
type SubmitResult struct {
	Success bool            `json:"success"`
	Offline bool            `json:"offline"`
	Results []StudentResult `json:"results"`
}

// Service owns the attendance event log and its summaries.
type Service struct {
	store   *store.RecordStore
	checker netcheck.Checker
	catalog CatalogProvider
	logger  *log.Logger
}

// New creates an attendance service. catalog may be nil, in which case
// DefaultCatalog is used.
func New(recordStore *store.RecordStore, checker netcheck.Checker, catalog CatalogProvider, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[attendance] ", log.LstdFlags)
	}
	return &Service{
		store:   recordStore,
		checker: checker,
		catalog: catalog,
		logger:  logger,
	}
}

// Mark upserts one attendance event into the student's log. Re-marking
// the same (date, subject) overwrites the earlier status. The write is
// local and pending push; errors propagate so the UI can surface them.
func (s *Service) Mark(ctx context.Context, owner, studentID string, ev Event) error {
	if ev.Date == "" || ev.Subject == "" {
		return fmt.Errorf("attendance event requires date and subject")
	}
	if ev.Status != StatusPresent && ev.Status != StatusAbsent {
		return fmt.Errorf("invalid attendance status %q", ev.Status)
	}

	events, err := s.events(ctx, owner, studentID)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range events {
		if existing.Date == ev.Date && existing.Subject == ev.Subject {
			events[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		events = append(events, ev)
	}

	data, err := eventsToData(studentID, events)
	if err != nil {
		return err
	}
	_, err = s.store.Save(ctx, owner, Category, studentID, data, false)
	return err
}

// Summary computes per-subject aggregates for one student.
//
// A subject with zero recorded classes reports 100% and eligible:
// "no classes yet" leaves the student fully eligible by default.
// Storage read failures degrade to an empty log (logged), so the UI
// always gets a summary to render.
func (s *Service) Summary(ctx context.Context, owner, studentID string) ([]SubjectSummary, error) {
	events, err := s.events(ctx, owner, studentID)
	if err != nil {
		s.logger.Printf("WARNING: failed to read attendance log for %s/%s: %v", owner, studentID, err)
		events = nil
	}

	summaries := make([]SubjectSummary, 0)
	for _, subject := range s.subjects() {
		var total, attended int
		for _, ev := range events {
			if ev.Subject != subject.Code {
				continue
			}
			total++
			if ev.Status == StatusPresent {
				attended++
			}
		}

		percentage := 100.0
		if total > 0 {
			percentage = float64(attended) / float64(total) * 100
		}

		summaries = append(summaries, SubjectSummary{
			Subject:    subject,
			Total:      total,
			Attended:   attended,
			Percentage: percentage,
			Eligible:   percentage >= EligibilityThreshold,
		})
	}
	return summaries, nil
}

// SubmitClass records one event per student in the roster for a class.
//
// statuses maps student id to status; students missing from the map
// are recorded Absent: an unmarked student is never silently counted
// present. One student's failure does not abort the rest; per-student
// outcomes are reported independently. The submission succeeds offline
// (records are written locally, pending push) and flags Offline.
func (s *Service) SubmitClass(ctx context.Context, owner string, roster []string, date, subject string, statuses map[string]string, markedBy string) (*SubmitResult, error) {
	if date == "" || subject == "" {
		return nil, fmt.Errorf("class submission requires date and subject")
	}

	result := &SubmitResult{
		Success: true,
		Offline: !s.checker.Online(ctx),
	}

	for _, studentID := range roster {
		status, ok := statuses[studentID]
		if !ok {
			status = StatusAbsent
		}

		sr := StudentResult{StudentID: studentID, Status: status, OK: true}
		err := s.Mark(ctx, owner, studentID, Event{
			Date:     date,
			Subject:  subject,
			Status:   status,
			MarkedBy: markedBy,
		})
		if err != nil {
			s.logger.Printf("WARNING: failed to mark %s for %s: %v", studentID, date, err)
			sr.OK = false
			sr.Error = err.Error()
		}
		result.Results = append(result.Results, sr)
	}

	return result, nil
}

// Events returns the raw event log for one student. A missing log is
// an empty slice, not an error.
func (s *Service) Events(ctx context.Context, owner, studentID string) ([]Event, error) {
	return s.events(ctx, owner, studentID)
}

func (s *Service) events(ctx context.Context, owner, studentID string) ([]Event, error) {
	rec, err := s.store.Get(ctx, owner, Category, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return eventsFromData(rec.Data)
}

func (s *Service) subjects() Catalog {
	if s.catalog != nil {
		subjects, err := s.catalog.Subjects()
		if err != nil {
			s.logger.Printf("WARNING: timetable unavailable, using default catalog: %v", err)
		} else if len(subjects) > 0 {
			return subjects
		}
	}
	return DefaultCatalog
}

// eventsToData encodes the event log into the record's JSON payload.
func eventsToData(studentID string, events []Event) (map[string]any, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attendance events: %w", err)
	}
	var generic []any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to encode attendance events: %w", err)
	}
	return map[string]any{
		"studentId": studentID,
		"events":    generic,
	}, nil
}

// eventsFromData decodes the event log from a record payload.
func eventsFromData(data map[string]any) ([]Event, error) {
	raw, err := json.Marshal(data["events"])
	if err != nil {
		return nil, fmt.Errorf("failed to decode attendance events: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("failed to decode attendance events: %w", err)
	}
	return events, nil
}
