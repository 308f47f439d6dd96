package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// WebhookConfig describes the single outbound webhook for run outcomes
type WebhookConfig struct {
	URL        string
	Method     string
	AuthType   string // BEARER, or empty to use AuthHeader
	AuthHeader string
	AuthValue  string
	Retries    int
	RetryDelay time.Duration
	Statuses   []string // statuses that trigger a delivery; empty means all
}

// RunPayload is the JSON body posted for a finished run
type RunPayload struct {
	Job        string    `json:"job"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	FinishedAt time.Time `json:"finished_at"`
	Message    string    `json:"message"`
}

// WebhookNotifier posts run outcomes to a webhook
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
	wg     sync.WaitGroup // in-flight Notify deliveries
}

// NewWebhookNotifier returns nil when no URL is configured
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.URL == "" {
		return nil
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	return &WebhookNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ShouldSend reports whether status passes the configured filter
func (n *WebhookNotifier) ShouldSend(status string) bool {
	if n == nil {
		return false
	}
	if len(n.cfg.Statuses) == 0 {
		return true
	}
	for _, s := range n.cfg.Statuses {
		if strings.EqualFold(strings.TrimSpace(s), status) {
			return true
		}
	}
	return false
}

// Notify delivers p in the background when its status passes the filter.
// Call Wait before exiting so pending deliveries are not dropped.
func (n *WebhookNotifier) Notify(p RunPayload) {
	if !n.ShouldSend(p.Status) {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Deliver(context.Background(), p); err != nil {
			log.Warn().Err(err).Str("job", p.Job).Str("run_id", p.RunID).Msg("⚠️ Webhook delivery failed")
		}
	}()
}

// Wait blocks until every delivery started by Notify has finished or ctx is done
func (n *WebhookNotifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Wait: pending webhook deliveries: %w", ctx.Err())
	}
}

// Deliver posts p, retrying up to the configured count
func (n *WebhookNotifier) Deliver(ctx context.Context, p RunPayload) error {
	if p.FinishedAt.IsZero() {
		p.FinishedAt = time.Now()
	}
	if p.Message == "" {
		p.Message = Message(p)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("Deliver: marshal: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.Retries; attempt++ {
		log.Debug().Str("url", n.cfg.URL).Int("attempt", attempt).Int("max", n.cfg.Retries).Msg("🔹 Sending webhook")

		lastErr = n.send(ctx, body)
		if lastErr == nil {
			return nil
		}
		if attempt < n.cfg.Retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.cfg.RetryDelay):
			}
		}
	}
	return fmt.Errorf("Deliver: %d attempts: %w", n.cfg.Retries, lastErr)
}

func (n *WebhookNotifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, n.cfg.Method, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "market-rankings/1.0")

	if strings.EqualFold(n.cfg.AuthType, "BEARER") {
		req.Header.Set("Authorization", "Bearer "+n.cfg.AuthValue)
	} else if n.cfg.AuthHeader != "" {
		req.Header.Set(n.cfg.AuthHeader, n.cfg.AuthValue)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Message formats a one-line summary, e.g. "❌ rankings_backfill failed (0 rows)"
func Message(p RunPayload) string {
	icon := "✅"
	switch p.Status {
	case "failed":
		icon = "❌"
	case "partial":
		icon = "⚠️"
	}
	return fmt.Sprintf("%s %s %s (%d rows)", icon, p.Job, p.Status, p.Rows)
}
