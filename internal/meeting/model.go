package meeting

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a meeting id does not exist.
var ErrNotFound = errors.New("meeting not found")

// ErrDuplicate is returned when a meeting already exists for the same course
// and start time.
var ErrDuplicate = errors.New("meeting already scheduled for this course and start time")

// ValidationError reports missing required fields on a create request.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Meeting is one scheduled meeting with its Google Meet link.
type Meeting struct {
	ID           string    `bson:"-" json:"id"`
	Subject      string    `bson:"subject" json:"subject"`
	Link         string    `bson:"link" json:"link"`
	Instructor   string    `bson:"instructor" json:"instructor"`
	TeacherID    string    `bson:"teacher_id,omitempty" json:"teacherId,omitempty"`
	Description  string    `bson:"description,omitempty" json:"description,omitempty"`
	Date         time.Time `bson:"date" json:"date"`
	Start        time.Time `bson:"start" json:"start"`
	End          time.Time `bson:"end" json:"end"`
	RoomNumber   string    `bson:"room_number" json:"roomNumber"`
	Color        string    `bson:"color" json:"color"`
	Participants int       `bson:"participants" json:"participants"`
	CourseID     string    `bson:"course_id" json:"courseId"`
	Attendees    []string  `bson:"attendees" json:"attendees"`

	// GoogleEventID is kept so the calendar event can be removed when the
	// meeting is deleted.
	GoogleEventID string `bson:"google_event_id,omitempty" json:"googleEventId,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// CreateInput carries the caller-supplied fields for a new meeting.
type CreateInput struct {
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Instructor  string    `json:"instructor"`
	TeacherID   string    `json:"teacherId"`
	RoomNumber  string    `json:"roomNumber"`
	Color       string    `json:"color"`
	CourseID    string    `json:"courseId"`
	Start       time.Time `json:"startTime"`
	End         time.Time `json:"endTime"`
	Attendees   []string  `json:"attendees"`
}

// Validate checks the fields a meeting cannot be created without.
func (in *CreateInput) Validate() error {
	var missing []string
	if in.Subject == "" {
		missing = append(missing, "subject")
	}
	if in.Start.IsZero() {
		missing = append(missing, "startTime")
	}
	if in.End.IsZero() {
		missing = append(missing, "endTime")
	}
	if in.CourseID == "" {
		missing = append(missing, "courseId")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// UpdateInput carries the mutable fields of an existing meeting. Times,
// link, and course binding are immutable: changing them would require
// recreating the calendar event.
type UpdateInput struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Instructor  string `json:"instructor"`
	RoomNumber  string `json:"roomNumber"`
	Color       string `json:"color"`
}
