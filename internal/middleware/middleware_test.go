package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func TestCORS(t *testing.T) {
	tests := []struct {
		name      string
		allowed   string
		origin    string
		method    string
		wantAllow string
		wantCode  int
	}{
		{name: "wildcard", allowed: "*", origin: "https://a.example.com", method: http.MethodGet, wantAllow: "*", wantCode: http.StatusOK},
		{name: "listed origin", allowed: "http://localhost:3000, https://ops.example.com/", origin: "https://ops.example.com", method: http.MethodGet, wantAllow: "https://ops.example.com", wantCode: http.StatusOK},
		{name: "unlisted origin", allowed: "https://ops.example.com", origin: "https://evil.example.com", method: http.MethodGet, wantAllow: "", wantCode: http.StatusOK},
		{name: "preflight", allowed: "https://ops.example.com", origin: "https://ops.example.com", method: http.MethodOptions, wantAllow: "https://ops.example.com", wantCode: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.allowed))
			r.GET("/api/hosts", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(tc.method, "/api/hosts", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tc.wantAllow)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, target := range []string{"/ok?host=Wisdom", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["host"] != "Wisdom" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["status"] != int64(500) {
		t.Errorf("second entry = %+v", entries[1])
	}
}
