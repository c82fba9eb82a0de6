package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/commitraider/pkg/engine/patterns"
	"github.com/DrSkyle/commitraider/pkg/engine/report"
	"github.com/DrSkyle/commitraider/pkg/engine/risk"
)

func TestSendScanSummary(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewSlackClient(srv.URL, "#security")
	summary := report.Summary{Repository: "/src/app", Host: "GitHub", TotalCommits: 120, Findings: 2, RiskScore: 8.5, RiskLevel: risk.LevelCritical, Blocking: 1}
	top := []report.Finding{{
		VulnerabilityFinding: patterns.VulnerabilityFinding{CommitID: "0123456789abcdef", Message: "fix use after free\n\nbody", RiskScore: 9},
		CommitURL:            "https://github.com/acme/app/commit/0123456789abcdef",
	}}

	require.NoError(t, client.SendScanSummary(context.Background(), summary, top))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "#security", payload["channel"])

	text := fmt.Sprint(payload)
	assert.Contains(t, text, "🔴 Commit History Risk Report")
	assert.Contains(t, text, "8.5/10 (CRITICAL)")
	assert.Contains(t, text, "<https://github.com/acme/app/commit/0123456789abcdef|01234567>")
	assert.Contains(t, text, "fix use after free")
	assert.Contains(t, text, "1 blocking policy violation")
}

func TestSendScanSummaryNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackClient(srv.URL, "").SendScanSummary(context.Background(), report.Summary{}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "403"))
}

func TestSendScanSummaryWithoutWebhook(t *testing.T) {
	assert.NoError(t, NewSlackClient("", "").SendScanSummary(context.Background(), report.Summary{}, nil))
}

func TestPayloadListsAtMostFive(t *testing.T) {
	var top []report.Finding
	for i := 0; i < 8; i++ {
		top = append(top, report.Finding{VulnerabilityFinding: patterns.VulnerabilityFinding{CommitID: "c", Message: "fix xss"}})
	}
	payload := NewSlackClient("http://unused", "").constructPayload(report.Summary{RiskLevel: risk.LevelLow}, top)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "fix xss"))
	assert.Contains(t, string(data), "🟢")
	assert.NotContains(t, payload, "channel")
}
