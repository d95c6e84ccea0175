package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/option"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeLister struct {
	events []Event
	err    error
	window Window
}

func (f *fakeLister) Events(_ context.Context, _ string, w Window) ([]Event, error) {
	f.window = w
	return f.events, f.err
}

type calendarBody struct {
	Success bool `json:"success"`
	Data    struct {
		Events     []Event `json:"events"`
		Authorized bool    `json:"authorized"`
	} `json:"data"`
}

func getCalendar(h *Handler, target string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/api/calendar", h.Events)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCalendarEvents(t *testing.T) {
	link := "https://meet.google.com/abc"
	tests := []struct {
		name           string
		target         string
		lister         *fakeLister
		wantStatus     int
		wantAuthorized bool
		wantEvents     int
	}{
		{name: "missing host", target: "/api/calendar", lister: &fakeLister{}, wantStatus: http.StatusBadRequest},
		{name: "not connected", target: "/api/calendar?host=Inbest", lister: &fakeLister{err: ErrAuthorizationRequired}, wantStatus: http.StatusOK},
		{name: "upstream failure", target: "/api/calendar?host=Wisdom", lister: &fakeLister{err: errors.New("calendar down")}, wantStatus: http.StatusInternalServerError},
		{
			name:           "events",
			target:         "/api/calendar?host=Wisdom&range=upcoming",
			lister:         &fakeLister{events: []Event{{ID: "e1", Summary: "Kickoff", MeetLink: &link}}},
			wantStatus:     http.StatusOK,
			wantAuthorized: true,
			wantEvents:     1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := getCalendar(NewHandler(tc.lister, nil), tc.target)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d body=%s", w.Code, w.Body)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var body calendarBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !body.Success || body.Data.Authorized != tc.wantAuthorized || len(body.Data.Events) != tc.wantEvents || body.Data.Events == nil {
				t.Fatalf("body = %s", w.Body)
			}
		})
	}
}

func TestCalendarEventsDefaultsToToday(t *testing.T) {
	now := time.Date(2026, 2, 24, 15, 0, 0, 0, time.UTC)
	lister := &fakeLister{}
	h := NewHandler(lister, nil)
	h.now = func() time.Time { return now }

	if w := getCalendar(h, "/api/calendar?host=Wisdom"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if want := WindowFor(RangeToday, now); lister.window != want {
		t.Fatalf("window = %+v, want %+v", lister.window, want)
	}
}

type fakeConnections map[string]bool

func (f fakeConnections) ConnectedHosts(context.Context) (map[string]bool, error) { return f, nil }

func TestHostsList(t *testing.T) {
	hosts := []config.Host{{ID: "operaciones", Name: "Operaciones"}, {ID: "wisdom", Name: "Wisdom"}}
	h := NewHostsHandler(hosts, fakeConnections{"Wisdom": true}, nil)
	r := gin.New()
	r.GET("/api/hosts", h.List)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/hosts", nil))

	var body struct {
		Data struct {
			Hosts []HostStatus `json:"hosts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := body.Data.Hosts
	if len(got) != 2 || got[0].Name != "Operaciones" || got[0].Connected || !got[1].Connected {
		t.Fatalf("hosts = %+v", got)
	}
}

func oauthRouter(h *OAuthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/api/auth/google", h.Start)
	r.GET("/api/auth/callback", h.Callback)
	return r
}

func TestOAuthStart(t *testing.T) {
	signer := NewStateSigner("state-secret")
	h := NewOAuthHandler(testOAuthConfig("https://oauth.example.com/token"), signer, newMemTokens(), "https://ops.example.com/bot-grabacion", nil)
	w := httptest.NewRecorder()
	oauthRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google?host=Wisdom", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	q := loc.Query()
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" || q.Get("client_id") != "client" {
		t.Fatalf("consent url = %s", loc)
	}
	if host, err := signer.Verify(q.Get("state")); err != nil || host != "Wisdom" {
		t.Fatalf("state verifies to %q, %v", host, err)
	}

	w = httptest.NewRecorder()
	oauthRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing host status = %d", w.Code)
	}
}

type failingSaver struct{}

func (failingSaver) Upsert(context.Context, *models.OAuthToken) error { return errors.New("db down") }

func TestOAuthCallback(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			if r.FormValue("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
		case "/oauth2/v2/userinfo":
			_, _ = w.Write([]byte(`{"email":"ops@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer google.Close()

	signer := NewStateSigner("state-secret")
	state, err := signer.Sign("Wisdom")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	foreign, _ := NewStateSigner("other-secret").Sign("Wisdom")

	tests := []struct {
		name   string
		query  string
		saver  TokenSaver
		key    string
		value  string
		stored bool
	}{
		{name: "google error", query: "error=access_denied", key: "auth_error", value: "access_denied"},
		{name: "missing code", query: "state=" + state, key: "auth_error", value: ReasonMissingParams},
		{name: "forged state", query: "code=good-code&state=" + foreign, key: "auth_error", value: ReasonInvalidState},
		{name: "exchange failure", query: "code=bad-code&state=" + state, key: "auth_error", value: ReasonExchange},
		{name: "db failure", query: "code=good-code&state=" + state, saver: failingSaver{}, key: "auth_error", value: ReasonDB},
		{name: "connected", query: "code=good-code&state=" + state, key: "auth_success", value: "Wisdom", stored: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemTokens()
			saver := tc.saver
			if saver == nil {
				saver = store
			}
			h := NewOAuthHandler(testOAuthConfig(google.URL+"/token"), signer, saver, "https://ops.example.com/bot-grabacion", nil,
				option.WithEndpoint(google.URL+"/"))
			w := httptest.NewRecorder()
			oauthRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/callback?"+tc.query, nil))

			if w.Code != http.StatusFound {
				t.Fatalf("status = %d", w.Code)
			}
			loc, err := url.Parse(w.Header().Get("Location"))
			if err != nil {
				t.Fatalf("parse location: %v", err)
			}
			if loc.Path != "/bot-grabacion" || loc.Query().Get(tc.key) != tc.value {
				t.Fatalf("redirect = %s, want %s=%s", loc, tc.key, tc.value)
			}
			tok := store.tokens["Wisdom"]
			if !tc.stored {
				if tok != nil {
					t.Fatalf("token stored on failure: %+v", tok)
				}
				return
			}
			if tok == nil || tok.AccessToken != "at" || tok.RefreshToken != "rt" || tok.Email != "ops@example.com" || tok.TokenExpiry == nil {
				t.Fatalf("stored token = %+v", tok)
			}
		})
	}
}

func TestStateExpires(t *testing.T) {
	signer := NewStateSigner("state-secret")
	issued := time.Date(2026, 2, 24, 15, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return issued }
	state, err := signer.Sign("Wisdom")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signer.now = func() time.Time { return issued.Add(stateTTL + time.Second) }
	if _, err := signer.Verify(state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expired state err = %v", err)
	}
}
