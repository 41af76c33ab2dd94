package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification 封装一次价格变动告警的上下文。
type Notification struct {
	Symbol       string
	Name         string
	WindowLabel  string
	Period       time.Duration
	PctChange    decimal.Decimal
	ThresholdPct decimal.Decimal
	OldPrice     decimal.Decimal
	NewPrice     decimal.Decimal
	Direction    string
	At           time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       renderMessage(note),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("symbol", note.Symbol).
		Str("window", note.WindowLabel).
		Str("direction", note.Direction).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	emoji := "📈"
	if note.Direction == "down" {
		emoji = "📉"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s *%s* moved *%s%%* %s in the last %s\n",
		emoji, note.Name, note.PctChange.Abs().StringFixed(2), note.Direction, humanizePeriod(note.Period)))
	builder.WriteString(fmt.Sprintf("   • Old price: $%s\n", formatUSD(note.OldPrice)))
	builder.WriteString(fmt.Sprintf("   • New price: $%s\n", formatUSD(note.NewPrice)))
	builder.WriteString(fmt.Sprintf("   • %s alert ≥ %s%%\n", note.WindowLabel, note.ThresholdPct.String()))
	builder.WriteString(fmt.Sprintf("_Timestamp: %s_", note.At.UTC().Format("2006-01-02 15:04 UTC")))
	return builder.String()
}

func humanizePeriod(period time.Duration) string {
	if period <= 0 {
		return period.String()
	}
	if period%(24*time.Hour) == 0 {
		days := int(period / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if period%time.Hour == 0 {
		hours := int(period / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return period.String()
}

// formatUSD renders a decimal with two places and comma-grouped整数部分。
func formatUSD(value decimal.Decimal) string {
	fixed := value.StringFixed(2)

	negative := strings.HasPrefix(fixed, "-")
	if negative {
		fixed = fixed[1:]
	}

	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(digit)
	}

	result := grouped.String() + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

var _ Notifier = (*TelegramNotifier)(nil)
