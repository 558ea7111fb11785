package media

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultQueueCapacity емкость очередей пакетов и кадров по умолчанию
const DefaultQueueCapacity = 256

// ErrQueueClosed возвращается Pop после закрытия пустой очереди
var ErrQueueClosed = errors.New("очередь закрыта")

// Queue очередь между горутинами с ограниченной емкостью.
// При переполнении отбрасывается самый старый элемент, производитель никогда не блокируется.
type Queue[T any] struct {
	name     string
	capacity int

	mu      sync.Mutex
	items   []T
	dropped uint64
	closed  bool
	ready   chan struct{}

	droppedTotal prometheus.Counter
	depth        prometheus.Gauge
}

// NewQueue создает очередь. capacity <= 0 заменяется на DefaultQueueCapacity.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue[T]{
		name:         name,
		capacity:     capacity,
		items:        make([]T, 0, capacity),
		ready:        make(chan struct{}, 1),
		droppedTotal: queueDropped.WithLabelValues(name),
		depth:        queueDepth.WithLabelValues(name),
	}
}

// Push добавляет элемент. Возвращает false если очередь закрыта.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if len(q.items) >= q.capacity {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.dropped++
		q.droppedTotal.Inc()
	}
	q.items = append(q.items, v)
	q.depth.Set(float64(len(q.items)))

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TryPop забирает элемент без ожидания
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.depth.Set(float64(len(q.items)))
	return v, true
}

// Pop ждет элемент, закрытие очереди или отмену контекста
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		v, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return v, nil
		}
		if closed {
			var zero T
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len текущее число элементов
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped число отброшенных при переполнении элементов
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close запрещает новые элементы. Оставшиеся можно дочитать.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
