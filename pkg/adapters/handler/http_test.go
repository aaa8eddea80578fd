package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/config"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
)

type trackCall struct {
	ip, country, page, userAgent string
}

type fakeServices struct {
	mu       sync.Mutex
	calls    []trackCall
	reach    *domain.GeographicReach
	reachErr error
	stats    *domain.AdminStats
	statsErr error
	pingErr  error
	panicMsg string
}

func (f *fakeServices) TrackVisit(ctx context.Context, ip, country, page, userAgent string) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trackCall{ip, country, page, userAgent})
}

func (f *fakeServices) GeographicReach(ctx context.Context) (*domain.GeographicReach, error) {
	return f.reach, f.reachErr
}

func (f *fakeServices) AdminStats(ctx context.Context) (*domain.AdminStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeServices) Ping(ctx context.Context) error { return f.pingErr }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "production",
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

func serve(t *testing.T, cfg *config.Config, f *fakeServices, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	NewRouter(cfg, f, f, f).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestTrack(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		trusted    []string
		body       string
		xff        string
		wantCall   trackCall
	}{
		{
			name:       "untrusted peer ignores forwarded header",
			remoteAddr: "198.51.100.5:4444",
			body:       `{"country":" Kenya ","page":"/about"}`,
			xff:        "10.9.9.1",
			wantCall:   trackCall{"198.51.100.5", "Kenya", "/about", "test-agent"},
		},
		{
			name:       "trusted proxy forwards client address",
			remoteAddr: "10.0.0.2:5000",
			trusted:    []string{"10.0.0.0/8"},
			body:       `{"page":"/programs"}`,
			xff:        "203.0.113.7, 10.0.0.1",
			wantCall:   trackCall{"203.0.113.7", "", "/programs", "test-agent"},
		},
		{
			name:       "trusted proxy with garbage header keeps peer",
			remoteAddr: "10.0.0.2:5000",
			trusted:    []string{"10.0.0.2"},
			xff:        "not-an-ip",
			wantCall:   trackCall{"10.0.0.2", "", "", "test-agent"},
		},
		{
			name:       "empty body",
			remoteAddr: "192.0.2.1:1234",
			wantCall:   trackCall{"192.0.2.1", "", "", "test-agent"},
		},
		{
			name:       "malformed body falls back to defaults",
			remoteAddr: "192.0.2.1:1234",
			body:       `{"country":`,
			wantCall:   trackCall{"192.0.2.1", "", "", "test-agent"},
		},
		{
			name:       "oversized values are truncated",
			remoteAddr: "192.0.2.1:1234",
			body:       `{"country":"` + strings.Repeat("é", 130) + `","page":"/` + strings.Repeat("p", 3000) + `"}`,
			wantCall:   trackCall{"192.0.2.1", strings.Repeat("é", maxCountryLen), "/" + strings.Repeat("p", maxPageLen-1), "test-agent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServices{}
			cfg := testConfig()
			cfg.TrustedProxies = tt.trusted
			req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(tt.body))
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("User-Agent", "test-agent")
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			rr := serve(t, cfg, f, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if body := decodeBody(t, rr); body["success"] != true {
				t.Errorf("body = %v, want success", body)
			}
			if len(f.calls) != 1 {
				t.Fatalf("TrackVisit calls = %d, want 1", len(f.calls))
			}
			if f.calls[0] != tt.wantCall {
				t.Errorf("TrackVisit got %+v, want %+v", f.calls[0], tt.wantCall)
			}
		})
	}
}

func TestTrackOverRateLimitStillSucceeds(t *testing.T) {
	f := &fakeServices{}
	cfg := testConfig()
	cfg.RateLimitRequests = 3
	router := NewRouter(cfg, f, f, f)

	send := func(xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(`{"page":"/"}`))
		req.RemoteAddr = "198.51.100.5:4444"
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	// Rotating the forwarded header must not yield a fresh limit bucket.
	for i := 0; i < cfg.RateLimitRequests+2; i++ {
		rr := send(fmt.Sprintf("10.9.9.%d", i))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rr.Code)
		}
		if body := decodeBody(t, rr); body["success"] != true {
			t.Fatalf("request %d: body = %v", i+1, body)
		}
	}

	if len(f.calls) != cfg.RateLimitRequests {
		t.Errorf("TrackVisit calls = %d, want %d", len(f.calls), cfg.RateLimitRequests)
	}
	for _, c := range f.calls {
		if c.ip != "198.51.100.5" {
			t.Errorf("recorded address %q, want the socket peer", c.ip)
		}
	}
}

func TestTrackPanicIsNotReportedAsSuccess(t *testing.T) {
	f := &fakeServices{panicMsg: "store driver bug"}
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(`{}`))

	rr := serve(t, testConfig(), f, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 from the recoverer", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"success":true`) {
		t.Errorf("panicking request must not claim success: %q", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := serve(t, testConfig(), &fakeServices{}, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	for _, name := range []string{"visits_recorded_total", "visits_rate_limited_total", "visit_tracking_errors_total"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestGeographicReach(t *testing.T) {
	f := &fakeServices{reach: &domain.GeographicReach{
		Total: 4,
		Data:  []domain.CountryReach{{Country: "Malawi", Visitors: 4, Percentage: 100, Flag: "🇲🇼"}},
	}}

	rr := serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/api/analytics/geographic-reach", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["total"] != float64(4) {
		t.Errorf("unexpected body: %v", body)
	}
	data, _ := body["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("data = %v", body["data"])
	}
	entry := data[0].(map[string]interface{})
	if entry["country"] != "Malawi" || entry["visitors"] != float64(4) || entry["percentage"] != float64(100) || entry["flag"] != "🇲🇼" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestErrorEnvelope(t *testing.T) {
	f := &fakeServices{reachErr: errors.New("connection refused")}

	rr := serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/api/analytics/geographic-reach", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false || body["message"] == "" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Error("error detail must be hidden outside development")
	}

	dev := testConfig()
	dev.AppEnv = "development"
	rr = serve(t, dev, f, httptest.NewRequest(http.MethodGet, "/api/analytics/geographic-reach", nil))
	if body := decodeBody(t, rr); body["error"] != "connection refused" {
		t.Errorf("development error = %v", body["error"])
	}
}

func TestAdminStatsAuth(t *testing.T) {
	f := &fakeServices{stats: &domain.AdminStats{Blogs: 2, PageViews: 10, Visitors: 3}}
	cfg := testConfig()
	cfg.JWTSecret = "s3cret"

	rr := serve(t, cfg, f, httptest.NewRequest(http.MethodGet, "/api/analytics/admin-stats", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/admin-stats", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, cfg.JWTSecret, time.Now().Add(time.Minute)))
	rr = serve(t, cfg, f, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status with token = %d, want 200", rr.Code)
	}
	stats, _ := decodeBody(t, rr)["stats"].(map[string]interface{})
	if stats["blogs"] != float64(2) || stats["pageViews"] != float64(10) || stats["visitors"] != float64(3) {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestAdminStatsOpenWithoutSecret(t *testing.T) {
	f := &fakeServices{stats: &domain.AdminStats{}}

	rr := serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/api/analytics/admin-stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	f.statsErr = errors.New("timeout")
	rr = serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/api/analytics/admin-stats", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	f := &fakeServices{}
	rr := serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || decodeBody(t, rr)["status"] != "ok" {
		t.Errorf("healthy: %d %s", rr.Code, rr.Body.String())
	}

	f.pingErr = errors.New("down")
	rr = serve(t, testConfig(), f, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable || decodeBody(t, rr)["status"] != "degraded" {
		t.Errorf("degraded: %d %s", rr.Code, rr.Body.String())
	}
}

func TestClientResolver(t *testing.T) {
	res := NewClientResolver([]string{"10.0.0.0/8", "192.0.2.10", "bogus"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"direct peer", "198.51.100.4:5555", "", "", "198.51.100.4"},
		{"untrusted peer with header", "198.51.100.4:5555", "203.0.113.9", "", "198.51.100.4"},
		{"trusted range", "10.1.2.3:80", " 203.0.113.9 , 10.0.0.1", "", "203.0.113.9"},
		{"trusted single address", "192.0.2.10:80", "2001:db8::1", "", "2001:db8::1"},
		{"trusted falls back to X-Real-IP", "10.1.2.3:80", "", "203.0.113.20", "203.0.113.20"},
		{"trusted without headers", "10.1.2.3:80", "", "", "10.1.2.3"},
		{"ipv6 peer", "[2001:db8::5]:443", "203.0.113.9", "", "2001:db8::5"},
		{"no peer", "", "203.0.113.9", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if got := res.Resolve(req); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
