package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"gpo-autofish/internal/config"
	"gpo-autofish/internal/watchdog"
)

// Notifier receives the loop's events. Sends are fire-and-forget.
type Notifier interface {
	SendPurchase(amount int)
	SendProgress(count int)
	SendRecovery(rec watchdog.Record)
	Close()
}

// New returns a Discord webhook sink, or Nop when webhooks are disabled.
func New(cfg config.WebhookConfig, log *zap.Logger) Notifier {
	if !cfg.Enabled || cfg.URL == "" {
		return Nop{}
	}
	return NewWebhook(cfg.URL, cfg.Timeout, log)
}

type Nop struct{}

func (Nop) SendPurchase(int)             {}
func (Nop) SendProgress(int)             {}
func (Nop) SendRecovery(watchdog.Record) {}
func (Nop) Close()                       {}

const (
	colorPurchase = 0x2ECC71
	colorProgress = 0x3498DB
	colorRecovery = 0xE74C3C

	username = "GPO Autofish"
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Footer struct {
	Text string `json:"text"`
}

type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`
}

type Message struct {
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// Webhook posts Discord embeds in the background. Failures are logged.
type Webhook struct {
	url    string
	client *http.Client
	log    *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewWebhook(url string, timeout time.Duration, log *zap.Logger) *Webhook {
	ctx, cancel := context.WithCancel(context.Background())
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (w *Webhook) SendPurchase(amount int) {
	w.post(Message{Username: username, Embeds: []Embed{{
		Title:       "Auto purchase complete",
		Description: fmt.Sprintf("Bought %d bait.", amount),
		Color:       colorPurchase,
		Fields:      []Field{{Name: "Amount", Value: strconv.Itoa(amount), Inline: true}},
		Timestamp:   w.timestamp(),
	}}})
}

func (w *Webhook) SendProgress(count int) {
	w.post(Message{Username: username, Embeds: []Embed{{
		Title:       "Fishing progress",
		Description: fmt.Sprintf("%d fish caught so far.", count),
		Color:       colorProgress,
		Fields:      []Field{{Name: "Fish caught", Value: strconv.Itoa(count), Inline: true}},
		Timestamp:   w.timestamp(),
	}}})
}

func (w *Webhook) SendRecovery(rec watchdog.Record) {
	fields := []Field{
		{Name: "Recovery", Value: "#" + strconv.Itoa(rec.Number), Inline: true},
		{Name: "Stuck state", Value: rec.StuckState.DisplayName(), Inline: true},
		{Name: "Stuck for", Value: rec.StuckDuration.Round(time.Second).String(), Inline: true},
		{Name: "Reason", Value: string(rec.Reason), Inline: true},
	}
	if rec.StateDetails != nil {
		if details, err := json.MarshalToString(rec.StateDetails); err == nil {
			fields = append(fields, Field{Name: "Details", Value: "`" + details + "`"})
		}
	}
	if len(rec.RecentStuckActions) > 0 {
		var b bytes.Buffer
		for _, f := range rec.RecentStuckActions {
			fmt.Fprintf(&b, "%s for %s (max %s)\n", f.State, f.Duration.Round(time.Second), f.MaxAllowed)
		}
		fields = append(fields, Field{Name: "Recent stuck actions", Value: b.String()})
	}
	if rec.JoinTimedOut {
		fields = append(fields, Field{Name: "Anomaly", Value: "previous loop did not stop in time"})
	}
	w.post(Message{Username: username, Embeds: []Embed{{
		Title:     "Recovery performed",
		Color:     colorRecovery,
		Fields:    fields,
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		Footer:    &Footer{Text: "session " + rec.Session},
	}}})
}

func (w *Webhook) timestamp() string {
	return w.now().UTC().Format(time.RFC3339)
}

func (w *Webhook) post(msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.Send(w.ctx, msg); err != nil {
			w.log.Warn("Webhook delivery failed.", zap.Error(err))
		}
	}()
}

// Send posts msg and waits for the response.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// Close waits for in-flight posts; later sends are dropped.
func (w *Webhook) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
	w.client.CloseIdleConnections()
}
