package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverOptions parameterise the Pushover notifier.
type PushoverOptions struct {
	AppToken string
	UserKey  string
	Sound    string
	APIURL   string
	Timeout  time.Duration
}

// PushoverNotifier delivers through the Pushover messages API. Emergency
// priority makes Pushover itself re-alert every Retry until Expire.
type PushoverNotifier struct {
	opts   PushoverOptions
	client *http.Client
	logger zerolog.Logger
}

// NewPushoverNotifier 构造 Pushover 告警器。
func NewPushoverNotifier(opts PushoverOptions, logger zerolog.Logger) *PushoverNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.APIURL == "" {
		opts.APIURL = defaultPushoverURL
	}
	return &PushoverNotifier{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "alert_pushover").Logger(),
	}
}

type pushoverPayload struct {
	Token    string `json:"token"`
	User     string `json:"user"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	Sound    string `json:"sound,omitempty"`
	URL      string `json:"url,omitempty"`
	URLTitle string `json:"url_title,omitempty"`
	Retry    int    `json:"retry,omitempty"`
	Expire   int    `json:"expire,omitempty"`
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Receipt string   `json:"receipt"`
	Errors  []string `json:"errors"`
}

// Send posts the request to Pushover.
func (n *PushoverNotifier) Send(ctx context.Context, req Request) error {
	payload := pushoverPayload{
		Token:    n.opts.AppToken,
		User:     n.opts.UserKey,
		Title:    req.Title,
		Message:  req.Message,
		Priority: int(req.Priority),
		Sound:    n.opts.Sound,
		URL:      req.ActionURL,
		URLTitle: req.ActionLabel,
	}
	if req.Priority == PriorityEmergency {
		payload.Retry = int(req.Retry / time.Second)
		payload.Expire = int(req.Expire / time.Second)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pushover payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send pushover request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read pushover response: %w", err)
	}

	var result pushoverResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && len(result.Errors) > 0 {
			return fmt.Errorf("pushover api error (%d): %s", resp.StatusCode, strings.Join(result.Errors, ", "))
		}
		return fmt.Errorf("pushover api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr == nil && result.Status != 1 {
		return fmt.Errorf("pushover returned status=%d: %s", result.Status, strings.Join(result.Errors, ", "))
	}

	n.logger.Info().
		Str("id", req.ID.String()).
		Str("kind", string(req.Kind)).
		Str("priority", req.Priority.String()).
		Str("request", result.Request).
		Str("receipt", result.Receipt).
		Msg("notification sent (Pushover)")
	return nil
}

var _ Notifier = (*PushoverNotifier)(nil)
