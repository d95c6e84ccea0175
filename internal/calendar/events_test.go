package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func TestWindowFor(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	now := time.Date(2026, 2, 24, 15, 0, 0, 0, loc)

	tests := []struct {
		rng     string
		wantMin time.Time
		wantMax time.Time
	}{
		{
			rng:     RangeToday,
			wantMin: time.Date(2026, 2, 24, 0, 0, 0, 0, loc),
			wantMax: time.Date(2026, 2, 24, 23, 59, 59, 999000000, loc),
		},
		{
			rng:     RangeUpcoming,
			wantMin: time.Date(2026, 2, 25, 0, 0, 0, 0, loc),
			wantMax: time.Date(2026, 3, 3, 23, 59, 59, 999000000, loc),
		},
		{
			rng:     "next-month",
			wantMin: time.Date(2026, 2, 25, 0, 0, 0, 0, loc),
			wantMax: time.Date(2026, 3, 3, 23, 59, 59, 999000000, loc),
		},
	}
	for _, tc := range tests {
		t.Run(tc.rng, func(t *testing.T) {
			w := WindowFor(tc.rng, now)
			if !w.Min.Equal(tc.wantMin) || !w.Max.Equal(tc.wantMax) {
				t.Fatalf("window = %v .. %v, want %v .. %v", w.Min, w.Max, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestMeetLink(t *testing.T) {
	tests := []struct {
		name  string
		event *gcal.Event
		want  string
	}{
		{name: "hangout link wins", event: &gcal.Event{
			HangoutLink: "https://meet.google.com/abc",
			ConferenceData: &gcal.ConferenceData{EntryPoints: []*gcal.EntryPoint{
				{EntryPointType: "video", Uri: "https://zoom.us/j/1"},
			}},
		}, want: "https://meet.google.com/abc"},
		{name: "first video entry point", event: &gcal.Event{
			ConferenceData: &gcal.ConferenceData{EntryPoints: []*gcal.EntryPoint{
				{EntryPointType: "phone", Uri: "tel:+1"},
				{EntryPointType: "video", Uri: "https://zoom.us/j/1"},
				{EntryPointType: "video", Uri: "https://zoom.us/j/2"},
			}},
		}, want: "https://zoom.us/j/1"},
		{name: "no link", event: &gcal.Event{}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MeetLink(tc.event)
			if tc.want == "" {
				if got != nil {
					t.Fatalf("MeetLink = %q, want nil", *got)
				}
				return
			}
			if got == nil || *got != tc.want {
				t.Fatalf("MeetLink = %v, want %q", got, tc.want)
			}
		})
	}
}

type staticTokens string

func (s staticTokens) AccessToken(context.Context, string) (string, error) { return string(s), nil }

const eventsJSON = `{"items": [
  {"id": "e1", "summary": "Kickoff", "status": "confirmed",
   "start": {"dateTime": "2026-02-24T10:00:00-06:00"}, "end": {"dateTime": "2026-02-24T11:00:00-06:00"},
   "hangoutLink": "https://meet.google.com/abc", "organizer": {"email": "lead@example.com", "displayName": "Lead"}},
  {"id": "e2", "status": "cancelled"},
  {"id": "e3", "status": "confirmed", "start": {"date": "2026-02-24"}, "end": {"date": "2026-02-25"},
   "organizer": {"email": "ops@example.com"}}
]}`

func TestClientEvents(t *testing.T) {
	var query, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	loc := time.FixedZone("CST", -6*3600)
	c := NewClient(staticTokens("at-1"), nil, option.WithEndpoint(srv.URL+"/"))
	events, err := c.Events(context.Background(), "Wisdom", WindowFor(RangeToday, time.Date(2026, 2, 24, 15, 0, 0, 0, loc)))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	if auth != "Bearer at-1" {
		t.Errorf("Authorization = %q", auth)
	}
	for _, want := range []string{"singleEvents=true", "orderBy=startTime", "maxResults=50", "timeMin=2026-02-24T06%3A00%3A00.000Z", "timeMax=2026-02-25T05%3A59%3A59.999Z"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %s", query, want)
		}
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want cancelled one dropped: %+v", len(events), events)
	}
	first := events[0]
	if first.Summary != "Kickoff" || first.Organizer != "Lead" || first.Start != "2026-02-24T10:00:00-06:00" || first.MeetLink == nil {
		t.Errorf("first event = %+v", first)
	}
	second := events[1]
	if second.Summary != untitledEvent || second.Organizer != "ops@example.com" || second.Start != "2026-02-24" || second.End != "2026-02-25" || second.MeetLink != nil {
		t.Errorf("second event = %+v", second)
	}
}
