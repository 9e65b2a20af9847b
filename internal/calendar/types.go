package calendar

import (
	"time"
)

// EventInput carries the details for a new meeting event.
type EventInput struct {
	// Summary is the event title.
	Summary string

	// Description is the optional event body.
	Description string

	// Start and End bound the meeting. Formatted as UTC datetimes.
	Start time.Time
	End   time.Time

	// Attendees are invitee email addresses.
	Attendees []string
}

// MeetEvent is the created calendar event with its Meet conference link.
type MeetEvent struct {
	// ID is the Google Calendar event ID, stored for later deletion.
	ID string

	// HangoutLink is the Google Meet join URL.
	HangoutLink string

	// HTMLLink is the event's Calendar UI URL.
	HTMLLink string

	// Status is the provider-side event status (e.g. "confirmed").
	Status string
}
