package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "whipcast"

var (
	datagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "datagrams_received_total",
		Help:      "Датаграммы, переданные в машину состояний",
	})

	datagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "datagrams_sent_total",
		Help:      "Датаграммы, отправленные в сокет",
	})

	transmitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "transmit_errors_total",
		Help:      "Ошибки отправки датаграмм (не фатальны)",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "events_total",
		Help:      "События машины состояний по типам",
	}, []string{"event"})

	videoFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "video_frames_sent_total",
		Help:      "Видео кадры, переданные писателю трека",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Открытые сессии",
	})
)
