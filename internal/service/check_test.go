package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Paint3141/precious-metals/internal/alerting"
	"github.com/Paint3141/precious-metals/internal/config"
	"github.com/Paint3141/precious-metals/internal/storage"
)

type fakeNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

func (f *fakeNotifier) last() alerting.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes[len(f.notes)-1]
}

func checkerConfig() *config.Config {
	return &config.Config{
		Symbols: config.SymbolsConfig{
			Commodities: []config.CommodityConfig{
				{Symbol: "GOLD", Name: "Gold", Source: "goldapi"},
			},
		},
		Alerting: config.AlertingConfig{
			Enabled: true,
			Windows: []config.WindowConfig{
				{Label: "daily", Period: 24 * time.Hour, ThresholdPct: 2, Cooldown: 24 * time.Hour},
			},
		},
	}
}

func seedGold(t *testing.T, store *storage.MemoryStore, price float64, at time.Time) {
	t.Helper()
	err := store.InsertPricePoint(context.Background(), storage.PricePoint{
		Symbol:    "GOLD",
		Name:      "Gold",
		USDPrice:  decimal.NewFromFloat(price),
		FetchedAt: at,
	})
	if err != nil {
		t.Fatalf("插入测试数据失败: %v", err)
	}
}

func TestCheckerEndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	seedGold(t, store, 2000.00, now.Add(-25*time.Hour))
	seedGold(t, store, 2050.00, now)

	notifier := &fakeNotifier{}
	checker := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())

	if err := checker.Run(context.Background(), now); err != nil {
		t.Fatalf("Run 不应报错: %v", err)
	}

	if notifier.count() != 1 {
		t.Fatalf("期望发送 1 条告警, 实际 %d", notifier.count())
	}

	note := notifier.last()
	if note.PctChange.Cmp(decimal.NewFromFloat(2.5)) != 0 {
		t.Fatalf("期望 +2.5%%, 实际 %s", note.PctChange.String())
	}
	if note.Direction != "up" {
		t.Fatalf("期望方向 up, 实际 %s", note.Direction)
	}
	if note.NewPrice.Cmp(decimal.NewFromInt(2050)) != 0 {
		t.Fatalf("当前价不正确: %s", note.NewPrice.String())
	}

	sentAt, ok := store.SentAt("GOLD", "daily")
	if !ok || !sentAt.Equal(now) {
		t.Fatalf("ledger 应更新为 now, 实际 %v ok=%v", sentAt, ok)
	}
}

func TestCheckerCooldownIdempotence(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	seedGold(t, store, 2000.00, t0.Add(-25*time.Hour))
	seedGold(t, store, 2050.00, t0)

	notifier := &fakeNotifier{}
	checker := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())

	if err := checker.Run(context.Background(), t0); err != nil {
		t.Fatalf("第一次 Run 不应报错: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("第一次应发送 1 条, 实际 %d", notifier.count())
	}

	// One hour later the breach persists but the cooldown is active.
	if err := checker.Run(context.Background(), t0.Add(time.Hour)); err != nil {
		t.Fatalf("冷却期 Run 不应报错: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("冷却期内不应重复发送, 实际 %d", notifier.count())
	}
	if sentAt, _ := store.SentAt("GOLD", "daily"); !sentAt.Equal(t0) {
		t.Fatalf("冷却期内 ledger 不应变化, 实际 %v", sentAt)
	}

	// Past cooldown with a fresh breach: fires again and advances the ledger.
	later := t0.Add(25 * time.Hour)
	seedGold(t, store, 2110.00, later)

	if err := checker.Run(context.Background(), later); err != nil {
		t.Fatalf("冷却结束后 Run 不应报错: %v", err)
	}
	if notifier.count() != 2 {
		t.Fatalf("冷却结束后应再次发送, 实际 %d", notifier.count())
	}
	if sentAt, _ := store.SentAt("GOLD", "daily"); !sentAt.Equal(later) {
		t.Fatalf("ledger 应更新为 %v, 实际 %v", later, sentAt)
	}
}

func TestCheckerDeliveryFailureLeavesLedger(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	seedGold(t, store, 2000.00, now.Add(-25*time.Hour))
	seedGold(t, store, 2050.00, now)

	failing := &fakeNotifier{err: errors.New("telegram unreachable")}
	checker := NewChecker(checkerConfig(), store, store, failing, zerolog.Nop())

	if err := checker.Run(context.Background(), now); err != nil {
		t.Fatalf("投递失败不应使 Run 报错: %v", err)
	}
	if _, ok := store.SentAt("GOLD", "daily"); ok {
		t.Fatal("投递失败后 ledger 不应写入")
	}

	// The same breach on the next invocation still emits, then records.
	working := &fakeNotifier{}
	retry := NewChecker(checkerConfig(), store, store, working, zerolog.Nop())

	if err := retry.Run(context.Background(), now.Add(time.Minute)); err != nil {
		t.Fatalf("重试 Run 不应报错: %v", err)
	}
	if working.count() != 1 {
		t.Fatalf("重试应发送 1 条, 实际 %d", working.count())
	}
	if _, ok := store.SentAt("GOLD", "daily"); !ok {
		t.Fatal("重试成功后 ledger 应写入")
	}
}

func TestCheckerBelowThresholdNoAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	seedGold(t, store, 2000.00, now.Add(-25*time.Hour))
	seedGold(t, store, 2039.00, now) // +1.95%

	notifier := &fakeNotifier{}
	checker := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())

	if err := checker.Run(context.Background(), now); err != nil {
		t.Fatalf("Run 不应报错: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatalf("未达阈值不应发送, 实际 %d", notifier.count())
	}
	if store.SentCount() != 0 {
		t.Fatal("未达阈值不应写 ledger")
	}
}

func TestCheckerUndeterminedSkips(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	// Only one recent point: no baseline a day back.
	seedGold(t, store, 2050.00, now.Add(-time.Hour))

	notifier := &fakeNotifier{}
	checker := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())

	if err := checker.Run(context.Background(), now); err != nil {
		t.Fatalf("历史不足不应报错: %v", err)
	}
	if notifier.count() != 0 || store.SentCount() != 0 {
		t.Fatal("历史不足时不应有任何告警或 ledger 写入")
	}
}

func TestCheckerConcurrentRunsSingleLedgerEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	seedGold(t, store, 2000.00, now.Add(-25*time.Hour))
	seedGold(t, store, 2050.00, now)

	notifier := &fakeNotifier{}
	first := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())
	second := NewChecker(checkerConfig(), store, store, notifier, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = first.Run(context.Background(), now)
	}()
	go func() {
		defer wg.Done()
		_ = second.Run(context.Background(), now)
	}()
	wg.Wait()

	// The upsert is last-writer-wins on the composite key: whatever the
	// interleaving, exactly one ledger entry survives, stamped now.
	if store.SentCount() != 1 {
		t.Fatalf("并发执行后应只有 1 条 ledger 记录, 实际 %d", store.SentCount())
	}
	if sentAt, ok := store.SentAt("GOLD", "daily"); !ok || !sentAt.Equal(now) {
		t.Fatalf("ledger 记录应为 now, 实际 %v ok=%v", sentAt, ok)
	}
}
