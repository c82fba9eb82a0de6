package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine/report"
)

// PrintExitSummary writes a short recap once the browser has closed.
func PrintExitSummary(w io.Writer, start time.Time, r *report.Report) {
	elapsed := time.Since(start).Round(time.Second)
	if r == nil {
		fmt.Fprintf(w, "\n%s Scan aborted after %s.\n", iconWarn.Render(), elapsed)
		return
	}
	s := r.Summary
	fmt.Fprintf(w, "\n%s %d commits scanned in %s. %d findings, risk %.1f (%s).\n",
		special.Render("[DONE]"), s.TotalCommits, elapsed, s.Findings, s.RiskScore, s.RiskLevel)
	if s.Blocking > 0 {
		fmt.Fprintf(w, "%s %d blocking policy violations.\n", iconCritical.Render(), s.Blocking)
	}
}
