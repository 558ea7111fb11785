package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whipcast",
		Subsystem: "media",
		Name:      "queue_dropped_total",
		Help:      "Элементы, вытесненные из переполненной очереди",
	}, []string{"queue"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whipcast",
		Subsystem: "media",
		Name:      "queue_depth",
		Help:      "Текущая глубина очереди",
	}, []string{"queue"})

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whipcast",
		Subsystem: "media",
		Name:      "decode_errors_total",
		Help:      "Пропущенные из-за ошибки декодирования блоки",
	})

	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whipcast",
		Subsystem: "media",
		Name:      "frames_decoded_total",
		Help:      "Кадры, переданные в очередь отрисовки",
	})
)
