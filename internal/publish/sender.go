package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecosur-lab/datasync/internal/retry"
)

// Row is one hour of remapped, rounded averages. A nil value means the
// sensor was absent for the whole hour; it is still sent as null so the
// remote side sees a stable column set.
type Row struct {
	Timestamp time.Time
	Values    map[string]*float64
}

// rowTimestampLayout is the timestamp format in the publish payload.
const rowTimestampLayout = "2006-01-02 15:04:05"

// MarshalJSON renders the row as a flat object: timestamp first key by
// contract, then the remapped field values.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	out["timestamp"] = r.Timestamp.Format(rowTimestampLayout)
	for name, v := range r.Values {
		if v == nil {
			out[name] = nil
		} else {
			out[name] = *v
		}
	}
	return json.Marshal(out)
}

// payload is the remote endpoint's request body.
type payload struct {
	APIKey string `json:"apiKey"`
	Origen string `json:"origen"`
	Data   []Row  `json:"data"`
}

// Sender delivers one hourly row to the remote endpoint.
type Sender interface {
	Send(ctx context.Context, row Row) error
}

const (
	senderTimeout     = 30 * time.Second
	senderMaxAttempts = 3
)

// HTTPSender posts JSON to the remote endpoint. Any non-2xx status or
// network error counts as a failure; transient failures retry with bounded
// exponential backoff before the cycle sees the error.
type HTTPSender struct {
	url    string
	apiKey string
	origen string
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewHTTPSender creates a sender for one channel's endpoint and credentials.
func NewHTTPSender(url, apiKey, origen string, logger *slog.Logger) *HTTPSender {
	return &HTTPSender{
		url:    url,
		apiKey: apiKey,
		origen: origen,
		client: &http.Client{Timeout: senderTimeout},
		policy: &retry.ExponentialBackoff{
			MaxAttempts: senderMaxAttempts,
			MinInterval: 2 * time.Second,
			Timeout:     senderTimeout,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Send posts the row, retrying transient failures. A response status outside
// 2xx is transient from the sender's point of view; the retry budget decides
// when to give up.
func (s *HTTPSender) Send(ctx context.Context, row Row) error {
	body, err := json.Marshal(payload{APIKey: s.apiKey, Origen: s.origen, Data: []Row{row}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return s.policy.Start(ctx, "send "+row.Timestamp.Format(rowTimestampLayout), func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return true, fmt.Errorf("post: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return true, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
		}

		s.logger.Info("[Publisher] Row sent", "timestamp", row.Timestamp.Format(rowTimestampLayout), "status", resp.StatusCode)
		return false, nil
	})
}
