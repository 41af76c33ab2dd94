package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNotification() Notification {
	return Notification{
		Symbol:       "XAU",
		Name:         "Gold",
		WindowLabel:  "daily",
		Period:       24 * time.Hour,
		PctChange:    decimal.NewFromFloat(2.5),
		ThresholdPct: decimal.NewFromInt(2),
		OldPrice:     decimal.NewFromInt(2000),
		NewPrice:     decimal.NewFromInt(2050),
		Direction:    "up",
		At:           time.Now(),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "Gold") || !strings.Contains(received["text"], "2.50") {
		t.Fatalf("消息应包含名称与涨跌幅: %q", received["text"])
	}
	if !strings.Contains(received["text"], "$2,000.00") {
		t.Fatalf("消息应包含分组格式价格: %q", received["text"])
	}
	if received["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode 应为 Markdown: %#v", received)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestHumanizePeriod(t *testing.T) {
	cases := map[time.Duration]string{
		24 * time.Hour:     "1 day",
		7 * 24 * time.Hour: "7 days",
		time.Hour:          "1 hour",
		6 * time.Hour:      "6 hours",
	}
	for period, want := range cases {
		if got := humanizePeriod(period); got != want {
			t.Fatalf("humanizePeriod(%s) = %q, 期望 %q", period, got, want)
		}
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
