package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meshkeeper/swimd/internal/domain"
	"github.com/meshkeeper/swimd/internal/metrics"
	"github.com/meshkeeper/swimd/internal/swim"
)

type fakeSource struct {
	snap swim.Snapshot
}

func (f fakeSource) Snapshot() swim.Snapshot { return f.snap }

func TestHandleHealth(t *testing.T) {
	s := New(fakeSource{}, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestHandleStatus_CountsMembers(t *testing.T) {
	snap := swim.Snapshot{
		LocalAddr: "127.0.0.1:7001",
		Members: []domain.Member{
			{Address: "a:1", State: domain.Active},
			{Address: "b:2", State: domain.Suspect},
			{Address: "c:3", State: domain.Dead},
		},
		Counters: metrics.Counters{PingsSent: 10, AcksReceived: 8, Timeouts: 2},
		HasStats: false,
	}
	s := New(fakeSource{snap: snap}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.ServeHTTP(rr, req)

	var resp statusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveCount != 1 || resp.SuspectCount != 1 || resp.DeadCount != 1 {
		t.Errorf("counts = %+v, want 1/1/1", resp)
	}
	if resp.RTT != nil {
		t.Error("RTT should be omitted when HasStats is false")
	}
}

func TestHandleStatus_IncludesRTTWhenPresent(t *testing.T) {
	snap := swim.Snapshot{
		HasStats: true,
		Stats: metrics.Stats{
			Min: 5 * time.Millisecond, Max: 50 * time.Millisecond, Mean: 20 * time.Millisecond,
			SampleCount: 42,
		},
	}
	s := New(fakeSource{snap: snap}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.ServeHTTP(rr, req)

	var resp statusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RTT == nil {
		t.Fatal("RTT should be present")
	}
	if resp.RTT.MinMs != 5 {
		t.Errorf("MinMs = %v, want 5", resp.RTT.MinMs)
	}
	if resp.RTT.SampleCount != 42 {
		t.Errorf("SampleCount = %d, want 42", resp.RTT.SampleCount)
	}
}

func TestHandleMembers(t *testing.T) {
	snap := swim.Snapshot{Members: []domain.Member{{Address: "a:1", State: domain.Active}}}
	s := New(fakeSource{snap: snap}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	s.ServeHTTP(rr, req)

	var members []domain.Member
	if err := json.NewDecoder(rr.Body).Decode(&members); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(members) != 1 || members[0].Address != "a:1" {
		t.Errorf("members = %+v, want [{a:1 ...}]", members)
	}
}

func TestHandleHistory_DisabledWithoutEventLog(t *testing.T) {
	s := New(fakeSource{}, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when event log is disabled", rr.Code)
	}
}

func TestHandleMetrics_ServesPrometheusFormat(t *testing.T) {
	s := New(fakeSource{}, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Content-Type") == "" {
		t.Error("expected a Content-Type header from promhttp.Handler")
	}
}
