// Package calendar is the authenticated client factory for the Google
// Calendar API and the home of the two event operations this service needs:
// creating a meeting event with an attached Google Meet conference, and
// deleting one.
//
// A Client is bound to a single credential record at construction time. The
// token lifecycle manager guarantees the record is valid for at least the
// refresh margin, so the client never refreshes mid-flight.
package calendar
