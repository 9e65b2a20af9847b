package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/coursekit/meetingd/internal/logging"
	"github.com/coursekit/meetingd/internal/token"
)

func validRecord() *token.Record {
	return &token.Record{
		PrincipalID:    token.DefaultPrincipal,
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		TokenType:      "Bearer",
		Scope:          "https://www.googleapis.com/auth/calendar",
		ProviderExpiry: time.Now().Add(time.Hour).UnixMilli(),
		CreatedAt:      time.Now(),
	}
}

func TestNewClient(t *testing.T) {
	conf := &oauth2.Config{ClientID: "id", ClientSecret: "secret"}
	ctx := context.Background()

	t.Run("valid record", func(t *testing.T) {
		client, err := NewClient(ctx, conf, validRecord())
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		if client == nil {
			t.Fatal("NewClient() returned nil client")
		}
	})

	t.Run("nil record", func(t *testing.T) {
		_, err := NewClient(ctx, conf, nil)
		if !errors.Is(err, token.ErrNotAuthenticated) {
			t.Errorf("NewClient(nil) error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("missing access token", func(t *testing.T) {
		rec := validRecord()
		rec.AccessToken = ""

		_, err := NewClient(ctx, conf, rec)
		var merr *token.MalformedCredentialError
		if !errors.As(err, &merr) {
			t.Fatalf("NewClient() error = %v, want MalformedCredentialError", err)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		rec := validRecord()
		rec.RefreshToken = ""

		_, err := NewClient(ctx, conf, rec)
		var merr *token.MalformedCredentialError
		if !errors.As(err, &merr) {
			t.Fatalf("NewClient() error = %v, want MalformedCredentialError", err)
		}
	})
}

type fakeMetrics struct {
	service   string
	operation string
	status    string
	duration  time.Duration
	calls     int
}

func (f *fakeMetrics) RecordGoogleAPIOperation(_ context.Context, service, operation, status string, d time.Duration) {
	f.service = service
	f.operation = operation
	f.status = status
	f.duration = d
	f.calls++
}

// stubClient points the Calendar service at a local test server so provider
// calls can be exercised without the network.
func stubClient(t *testing.T, handler http.HandlerFunc, m Metrics) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("calendar.NewService() error = %v", err)
	}
	return &Client{svc: svc, metrics: m}
}

func TestCreateMeetEventRecordsMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-1","hangoutLink":"https://meet.google.com/abc-defg-hij","status":"confirmed"}`))
	}, metrics)

	event, err := client.CreateMeetEvent(context.Background(), EventInput{
		Summary: "Algebra II",
		Start:   time.Now(),
		End:     time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateMeetEvent() error = %v", err)
	}
	if event.HangoutLink != "https://meet.google.com/abc-defg-hij" {
		t.Errorf("hangout link = %q", event.HangoutLink)
	}

	if metrics.calls != 1 {
		t.Fatalf("metrics calls = %d, want 1", metrics.calls)
	}
	if metrics.service != "calendar" || metrics.operation != "create_meet_event" {
		t.Errorf("recorded %s/%s", metrics.service, metrics.operation)
	}
	if metrics.status != logging.StatusSuccess {
		t.Errorf("status = %q, want %q", metrics.status, logging.StatusSuccess)
	}
	if metrics.duration < 0 {
		t.Errorf("duration = %v", metrics.duration)
	}
}

func TestCreateMeetEventRecordsFailure(t *testing.T) {
	metrics := &fakeMetrics{}
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusInternalServerError)
	}, metrics)

	_, err := client.CreateMeetEvent(context.Background(), EventInput{
		Summary: "Algebra II",
		Start:   time.Now(),
		End:     time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("CreateMeetEvent() expected error")
	}
	if metrics.calls != 1 || metrics.status != logging.StatusError {
		t.Errorf("recorded calls=%d status=%q", metrics.calls, metrics.status)
	}
}

func TestDeleteEventRecordsMetrics(t *testing.T) {
	metrics := &fakeMetrics{}
	client := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, metrics)

	if err := client.DeleteEvent(context.Background(), "evt-1"); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if metrics.operation != "delete_event" || metrics.status != logging.StatusSuccess {
		t.Errorf("recorded %s/%s", metrics.operation, metrics.status)
	}
}

func TestEventInputTimesFormattedUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	start := time.Date(2026, 3, 12, 15, 0, 0, 0, loc)

	input := EventInput{
		Summary: "Algebra II",
		Start:   start,
		End:     start.Add(time.Hour),
	}

	if got := input.Start.UTC().Format(time.RFC3339); got != "2026-03-12T10:00:00Z" {
		t.Errorf("start formatted = %q", got)
	}
}
