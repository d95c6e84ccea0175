package recordings

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/moglich/opsdash/internal/reconcile"
)

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		applyErr   error
		wantEvents int
	}{
		{name: "malformed json", body: `{"event": "bot.done", `},
		{name: "missing bot id", body: `{"event": "bot.done", "data": {}}`},
		{name: "status change", body: `{"event": "bot.in_call_recording", "data": {"bot": {"id": "b1"}, "data": {"code": "in_call_recording"}}}`, wantEvents: 1},
		{name: "processing failure", body: `{"event": "bot.done", "data": {"bot": {"id": "b1"}, "data": {"code": "done"}}}`, applyErr: errors.New("db down"), wantEvents: 1},
		{name: "unknown event", body: `{"event": "recording.mystery", "data": {"bot": {"id": "b1"}}}`, wantEvents: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeReconciler{applyErr: tc.applyErr}
			r := router(NewHandler(&fakeStore{}, rec, nil), NewWebhookHandler(rec, nil, nil))
			w := serve(r, http.MethodPost, "/api/recall/webhook", []byte(tc.body), nil)

			if w.Code != http.StatusOK || w.Body.String() != `{"received":true}` {
				t.Fatalf("response = %d %s", w.Code, w.Body)
			}
			if len(rec.events) != tc.wantEvents {
				t.Fatalf("events = %+v", rec.events)
			}
		})
	}
}

func TestWebhookDecodesEvent(t *testing.T) {
	rec := &fakeReconciler{}
	r := router(NewHandler(&fakeStore{}, rec, nil), NewWebhookHandler(rec, nil, nil))
	serve(r, http.MethodPost, "/api/recall/webhook", []byte(`{"event":"bot.done","data":{"bot":{"id":"b7"},"data":{"code":"done"}}}`), nil)

	want := reconcile.Event{Name: "bot.done", BotID: "b7", Code: "done"}
	if len(rec.events) != 1 || rec.events[0] != want {
		t.Fatalf("events = %+v", rec.events)
	}
}

func TestWebhookSignature(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-key"))
	v, err := NewVerifier(secret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	now := time.Unix(1771945200, 0)
	v.now = func() time.Time { return now }
	body := []byte(`{"event":"bot.done","data":{"bot":{"id":"b1"},"data":{"code":"done"}}}`)

	signed := func(ts time.Time, sig string) http.Header {
		h := http.Header{}
		h.Set(headerID, "msg_1")
		h.Set(headerTimestamp, strconv.FormatInt(ts.Unix(), 10))
		h.Set(headerSignature, sig)
		return h
	}

	tests := []struct {
		name       string
		header     http.Header
		wantEvents int
	}{
		{name: "valid", header: signed(now, "v1,bogus "+v.Sign("msg_1", now, body)), wantEvents: 1},
		{name: "wrong signature", header: signed(now, "v1,AAAA")},
		{name: "stale timestamp", header: signed(now.Add(-10*time.Minute), v.Sign("msg_1", now.Add(-10*time.Minute), body))},
		{name: "unsigned", header: http.Header{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeReconciler{}
			r := router(NewHandler(&fakeStore{}, rec, nil), NewWebhookHandler(rec, v, nil))
			w := serve(r, http.MethodPost, "/api/recall/webhook", body, tc.header)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if len(rec.events) != tc.wantEvents {
				t.Fatalf("events = %d, want %d", len(rec.events), tc.wantEvents)
			}
		})
	}
}

func TestNewVerifierRejectsBadSecret(t *testing.T) {
	if _, err := NewVerifier("whsec_!!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := NewVerifier(""); err == nil {
		t.Fatal("expected empty secret error")
	}
}
