package meeting

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coursekit/meetingd/internal/calendar"
	"github.com/coursekit/meetingd/internal/instrumentation"
	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/token"
)

// CredentialSource yields a usable credential record, refreshing behind the
// scenes when needed. Satisfied by token.Manager.
type CredentialSource interface {
	Credential(ctx context.Context) (*token.Record, error)
}

// CalendarAPI is the slice of the calendar client the service needs.
type CalendarAPI interface {
	CreateMeetEvent(ctx context.Context, input calendar.EventInput) (*calendar.MeetEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// ClientFactory builds a calendar client bound to one credential record.
type ClientFactory func(ctx context.Context, rec *token.Record) (CalendarAPI, error)

// Metrics records meeting operation outcomes.
type Metrics interface {
	RecordMeetingOperation(ctx context.Context, operation, status string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables operation metrics.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Service coordinates meeting creation between the credential manager, the
// Google Calendar client, and the meeting store.
type Service struct {
	store   Store
	creds   CredentialSource
	factory ClientFactory
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires a meeting service.
func NewService(store Store, creds CredentialSource, factory ClientFactory, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		creds:   creds,
		factory: factory,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates the Google Calendar event with a Meet conference, then
// persists the meeting with the resulting link and event ID. An
// unauthenticated caller gets token.ErrNotAuthenticated untouched so the
// HTTP layer can respond with the authorization URL.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Meeting, error) {
	ctx, span := instrumentation.StartMeetingSpan(ctx, "create",
		attribute.String(instrumentation.SpanAttrCourseID, input.CourseID))
	defer span.End()

	if err := input.Validate(); err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	rec, err := s.creds.Credential(ctx)
	if err != nil {
		s.record(ctx, "create", logging.StatusError)
		return nil, err
	}

	client, err := s.factory(ctx, rec)
	if err != nil {
		s.record(ctx, "create", logging.StatusError)
		return nil, err
	}

	event, err := client.CreateMeetEvent(ctx, calendar.EventInput{
		Summary:     input.Subject,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		Attendees:   input.Attendees,
	})
	if err != nil {
		s.record(ctx, "create", logging.StatusError)
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}

	m := &Meeting{
		Subject:       input.Subject,
		Link:          event.HangoutLink,
		Instructor:    input.Instructor,
		TeacherID:     input.TeacherID,
		Description:   input.Description,
		Date:          input.Start.UTC().Truncate(24 * time.Hour),
		Start:         input.Start,
		End:           input.End,
		RoomNumber:    input.RoomNumber,
		Color:         input.Color,
		Participants:  len(input.Attendees),
		CourseID:      input.CourseID,
		Attendees:     input.Attendees,
		GoogleEventID: event.ID,
		CreatedAt:     s.now(),
	}
	if m.RoomNumber == "" {
		m.RoomNumber = fmt.Sprintf("Room %d", rand.IntN(1000))
	}
	if m.Color == "" {
		m.Color = fmt.Sprintf("#%06X", rand.IntN(1<<24))
	}

	stored, err := s.store.Insert(ctx, m)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		// The event exists but the meeting could not be saved. Remove
		// the event again so attendees are not invited to an orphan.
		if delErr := client.DeleteEvent(ctx, event.ID); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned calendar event left behind",
				logging.Operation("meeting_create"),
				slog.String("event_id", event.ID),
				logging.Err(delErr))
		}
		s.record(ctx, "create", logging.StatusError)
		return nil, err
	}

	s.logger.InfoContext(ctx, "meeting created",
		logging.Operation("meeting_create"),
		slog.String("meeting_id", stored.ID),
		slog.String("course_id", stored.CourseID),
		slog.Int("attendees", len(stored.Attendees)))
	s.record(ctx, "create", logging.StatusSuccess)
	instrumentation.SetSpanSuccess(span)
	return stored, nil
}

// List returns meetings, optionally filtered by course.
func (s *Service) List(ctx context.Context, courseID string) ([]*Meeting, error) {
	return s.store.List(ctx, courseID)
}

// Get returns one meeting.
func (s *Service) Get(ctx context.Context, id string) (*Meeting, error) {
	return s.store.Get(ctx, id)
}

// Update changes a meeting's mutable fields.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Meeting, error) {
	m, err := s.store.Update(ctx, id, in)
	if err != nil {
		s.record(ctx, "update", logging.StatusError)
		return nil, err
	}
	s.record(ctx, "update", logging.StatusSuccess)
	return m, nil
}

// Delete removes the meeting. The calendar event is deleted best-effort
// first: a calendar-side failure is logged and the local delete proceeds,
// because the local record is authoritative.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := instrumentation.StartMeetingSpan(ctx, "delete",
		attribute.String(instrumentation.SpanAttrMeetingID, id))
	defer span.End()

	m, err := s.store.Get(ctx, id)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return err
	}

	if m.GoogleEventID != "" {
		s.deleteEvent(ctx, m.GoogleEventID)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.record(ctx, "delete", logging.StatusError)
		instrumentation.SetSpanError(span, err)
		return err
	}

	s.logger.InfoContext(ctx, "meeting deleted",
		logging.Operation("meeting_delete"),
		slog.String("meeting_id", id))
	s.record(ctx, "delete", logging.StatusSuccess)
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (s *Service) deleteEvent(ctx context.Context, eventID string) {
	rec, err := s.creds.Credential(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping calendar cleanup",
			logging.Operation("meeting_delete"),
			slog.String("event_id", eventID),
			logging.Err(err))
		return
	}

	client, err := s.factory(ctx, rec)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping calendar cleanup",
			logging.Operation("meeting_delete"),
			slog.String("event_id", eventID),
			logging.Err(err))
		return
	}

	if err := client.DeleteEvent(ctx, eventID); err != nil {
		s.logger.WarnContext(ctx, "calendar event delete failed",
			logging.Operation("meeting_delete"),
			slog.String("event_id", eventID),
			logging.Err(err))
	}
}

func (s *Service) record(ctx context.Context, operation, status string) {
	if s.metrics != nil {
		s.metrics.RecordMeetingOperation(ctx, operation, status)
	}
}
