package google

// OAuth scopes requested during authorization. The calendar scope covers
// calendar read/write; the events scope covers creating and deleting the
// meeting events themselves.
const (
	CalendarScope       = "https://www.googleapis.com/auth/calendar"
	CalendarEventsScope = "https://www.googleapis.com/auth/calendar.events"
)

// Scopes is the full grant set requested during the consent flow.
var Scopes = []string{
	CalendarScope,
	CalendarEventsScope,
}
