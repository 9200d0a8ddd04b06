package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	issues "hydrolog/internal/issues/domain"
)

const defaultMaxRetries = 5

// Notifier delivers issue notifications to an external receiver.
type Notifier interface {
	NotifyIssue(ctx context.Context, issue *issues.Issue) error
}

// WebhookNotifier POSTs issue payloads to a configured URL, retrying
// transient failures with exponential backoff.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	maxRetries uint64
	interval   time.Duration
}

// WebhookOption customizes a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithMaxRetries caps delivery attempts at retries+1.
func WithMaxRetries(retries uint64) WebhookOption {
	return func(n *WebhookNotifier) { n.maxRetries = retries }
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(interval time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if interval > 0 {
			n.interval = interval
		}
	}
}

// NewWebhookNotifier constructs a notifier for a webhook URL.
func NewWebhookNotifier(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier: empty url")
	}
	n := &WebhookNotifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: defaultMaxRetries,
		interval:   500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NotifyIssue delivers one issue, retrying until the receiver accepts it
// or the retry budget runs out.
func (n *WebhookNotifier) NotifyIssue(ctx context.Context, issue *issues.Issue) error {
	if issue == nil {
		return errors.New("webhook notifier: nil issue")
	}
	payload, err := json.Marshal(map[string]any{
		"id":         issue.ID,
		"owner_id":   issue.OwnerID,
		"entity_id":  issue.EntityID,
		"field":      issue.Field,
		"value":      issue.Value,
		"range_min":  issue.RangeMin,
		"range_max":  issue.RangeMax,
		"unit":       issue.Unit,
		"message":    issue.Message,
		"created_at": issue.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.interval
	return backoff.Retry(
		func() error {
			return n.post(ctx, payload)
		},
		backoff.WithContext(
			backoff.WithMaxRetries(policy, n.maxRetries),
			ctx,
		),
	)
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(fmt.Errorf("webhook notifier: receiver rejected payload with %d", resp.StatusCode))
	}
	return fmt.Errorf("webhook notifier: receiver returned %d", resp.StatusCode)
}
