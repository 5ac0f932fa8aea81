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
	"github.com/shopspring/decimal"
)

// Notification 封装一次告警邮件的上下文。
type Notification struct {
	To           string
	AssetSymbol  string
	Direction    string
	TargetPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// ResendNotifier 通过 Resend HTTP API 推送告警邮件。
type ResendNotifier struct {
	apiKey    string
	fromEmail string
	fromName  string
	baseURL   string
	client    *http.Client
	logger    zerolog.Logger
}

// NewResendNotifier 构造 Resend 告警器。
func NewResendNotifier(apiKey, fromEmail, fromName, baseURL string, timeout time.Duration, logger zerolog.Logger) *ResendNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}

	return &ResendNotifier{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "alert_resend").Logger(),
	}
}

type sendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Notify 调用 /emails 接口发送一封告警邮件。
func (n *ResendNotifier) Notify(ctx context.Context, note Notification) error {
	from := n.fromEmail
	if n.fromName != "" {
		from = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	payload := sendEmailRequest{
		From:    from,
		To:      note.To,
		Subject: renderSubject(note),
		HTML:    renderHTML(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal resend payload: %w", err)
	}

	url := n.baseURL + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send resend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend 响应码异常: %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	n.logger.Info().
		Str("symbol", note.AssetSymbol).
		Str("direction", note.Direction).
		Msg("告警邮件已发送 (Resend)")
	return nil
}

func renderSubject(note Notification) string {
	return fmt.Sprintf("MetalPulse alert: %s is %s $%s",
		note.AssetSymbol, note.Direction, note.TargetPrice.StringFixed(2))
}

func renderHTML(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(`<div style="font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial; line-height: 1.6;">`)
	builder.WriteString(`<h2 style="margin: 0 0 12px;">MetalPulse Price Alert</h2>`)
	builder.WriteString(`<p style="margin: 0 0 10px;">Your alert was triggered:</p>`)
	builder.WriteString("<ul>")
	builder.WriteString(fmt.Sprintf("<li><b>Asset</b>: %s</li>", note.AssetSymbol))
	builder.WriteString(fmt.Sprintf("<li><b>Condition</b>: %s $%s</li>", note.Direction, note.TargetPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("<li><b>Current price</b>: $%s</li>", note.CurrentPrice.StringFixed(2)))
	builder.WriteString("</ul>")
	builder.WriteString(`<p style="margin: 16px 0 0; font-size: 12px; color: #666;">If you didn't create this alert, you can ignore this email.</p>`)
	builder.WriteString("</div>")
	return builder.String()
}

var _ Notifier = (*ResendNotifier)(nil)
