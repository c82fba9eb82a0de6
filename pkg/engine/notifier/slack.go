package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DrSkyle/commitraider/pkg/engine/report"
)

// SlackClient handles Slack notifications.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel
	HTTPClient *http.Client
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendScanSummary posts the headline results of a scan.
// It is a no-op without a webhook URL.
func (s *SlackClient) SendScanSummary(ctx context.Context, summary report.Summary, top []report.Finding) error {
	if s.WebhookURL == "" {
		return nil
	}

	jsonPayload, err := json.Marshal(s.constructPayload(summary, top))
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from slack: %d", resp.StatusCode)
	}

	return nil
}

// maxListed bounds how many findings are listed in one message.
const maxListed = 5

// constructPayload builds the message blocks.
func (s *SlackClient) constructPayload(summary report.Summary, top []report.Finding) map[string]interface{} {
	statusIcon := "🟢"
	switch summary.RiskLevel {
	case "CRITICAL", "HIGH":
		statusIcon = "🔴"
	case "MEDIUM":
		statusIcon = "🟡"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s Commit History Risk Report", statusIcon),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Repository:* %s | *Host:* %s", summary.Repository, summary.Host),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Risk Score:*\n%.1f/10 (%s)", summary.RiskScore, summary.RiskLevel),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Commits Analyzed:*\n%d", summary.TotalCommits),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Flagged Commits:*\n%d", summary.Findings),
				},
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*CVE References:*\n%d", summary.CVEs),
				},
			},
		},
	}

	if len(top) > 0 {
		text := "*Top findings*"
		for i, f := range top {
			if i == maxListed {
				break
			}
			id := f.CommitID
			if len(id) > 8 {
				id = id[:8]
			}
			if f.CommitURL != "" {
				id = fmt.Sprintf("<%s|%s>", f.CommitURL, id)
			}
			text += fmt.Sprintf("\n• `%.1f` %s %s", f.RiskScore, id, f.Summary())
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": text,
			},
		})
	}

	if summary.Blocking > 0 {
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("⚠️ *%d blocking policy violation(s)*\nReview the report before accepting this repository.", summary.Blocking),
			},
		})
	}

	payload := map[string]interface{}{
		"blocks": blocks,
	}

	if s.Channel != "" {
		payload["channel"] = s.Channel
	}

	return payload
}
