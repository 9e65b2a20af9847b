// Package meeting persists scheduled meetings and orchestrates their
// creation against Google Calendar.
//
// Creating a meeting first obtains a valid credential from the token
// lifecycle manager, creates the calendar event with an attached Google Meet
// conference, and then persists the meeting locally with the event ID.
// Deleting a meeting attempts the calendar-side cleanup best-effort: a
// failure there is logged and the local delete proceeds, because the local
// record is authoritative.
package meeting
