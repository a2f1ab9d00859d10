package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/voxel-engine/internal/logging"
)

// LoggingListener пишет события шины в лог и считает их по типам
type LoggingListener struct {
	sub Subscription

	mu     sync.Mutex
	counts map[string]uint64
}

// StartLoggingListener подписывается на события указанных типов (все, если
// types пуст). Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus, types ...string) (*LoggingListener, error) {
	l := &LoggingListener{counts: make(map[string]uint64)}
	sub, err := bus.Subscribe(ctx, Filter{Types: types}, l.handle)
	if err != nil {
		return nil, err
	}
	l.sub = sub
	logging.Info("🪵 Лог событий шины включён (типы: %v)", types)
	return l, nil
}

func (l *LoggingListener) handle(_ context.Context, ev *Envelope) {
	l.mu.Lock()
	l.counts[ev.EventType]++
	l.mu.Unlock()
	logging.Debug("📨 %s от %s (prio=%d, %dB) id=%s", ev.EventType, ev.Source, ev.Priority, len(ev.Payload), ev.ID)
}

// Counts возвращает число полученных событий по типам
func (l *LoggingListener) Counts() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

// Summary - счётчики в виде "тип=число", отсортированные по типу
func (l *LoggingListener) Summary() []string {
	counts := l.Counts()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, fmt.Sprintf("%s=%d", t, counts[t]))
	}
	return out
}

func (l *LoggingListener) Unsubscribe() {
	l.sub.Unsubscribe()
}
