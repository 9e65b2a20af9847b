package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/coursekit/meetingd/internal/instrumentation"
	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/token"
)

// primaryCalendarID is the user's default calendar.
const primaryCalendarID = "primary"

// Metrics records provider call durations and outcomes. Satisfied by
// instrumentation.Metrics.
type Metrics interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetrics enables provider call metrics.
func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Client wraps the Google Calendar service bound to one credential record.
type Client struct {
	svc     *calendar.Service
	metrics Metrics
}

// NewClient binds a credential record into an authenticated Calendar client.
// No network call happens on construction; a record missing required fields
// fails with MalformedCredentialError.
func NewClient(ctx context.Context, conf *oauth2.Config, rec *token.Record, opts ...ClientOption) (*Client, error) {
	if rec == nil {
		return nil, token.ErrNotAuthenticated
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    rec.TokenType,
		RefreshToken: rec.RefreshToken,
		Expiry:       time.UnixMilli(rec.ProviderExpiry),
	}
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, tok))

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	c := &Client{svc: svc}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateMeetEvent inserts a calendar event with an attached Google Meet
// conference and notifies attendees.
func (c *Client) CreateMeetEvent(ctx context.Context, input EventInput) (*MeetEvent, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx,
		instrumentation.ServiceCalendar, "create_meet_event",
		attribute.Int("attendees", len(input.Attendees)))
	defer span.End()

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{
			Email: email,
		})
	}

	start := time.Now()
	created, err := c.svc.Events.Insert(primaryCalendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		c.record(ctx, "create_meet_event", logging.StatusError, time.Since(start))
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	c.record(ctx, "create_meet_event", logging.StatusSuccess, time.Since(start))
	instrumentation.SetSpanSuccess(span)

	return &MeetEvent{
		ID:          created.Id,
		HangoutLink: created.HangoutLink,
		HTMLLink:    created.HtmlLink,
		Status:      created.Status,
	}, nil
}

// DeleteEvent removes a calendar event from the primary calendar.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx,
		instrumentation.ServiceCalendar, "delete_event")
	defer span.End()

	start := time.Now()
	err := c.svc.Events.Delete(primaryCalendarID, eventID).
		Context(ctx).
		Do()
	if err != nil {
		c.record(ctx, "delete_event", logging.StatusError, time.Since(start))
		instrumentation.SetSpanError(span, err)
		return fmt.Errorf("failed to delete event: %w", err)
	}
	c.record(ctx, "delete_event", logging.StatusSuccess, time.Since(start))
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (c *Client) record(ctx context.Context, operation, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, d)
	}
}
