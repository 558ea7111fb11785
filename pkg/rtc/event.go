package rtc

import (
	"fmt"
)

// Event событие машины состояний
type Event interface {
	// Name короткое имя события для логов и метрик
	Name() string
}

// ConnectedEvent ICE и DTLS установлены
type ConnectedEvent struct{}

// IceStateEvent смена состояния ICE соединения
type IceStateEvent struct {
	State IceConnectionState
}

// MediaAddedEvent добавлена новая медиа линия
type MediaAddedEvent struct {
	Mid       Mid
	Kind      MediaKind
	Direction Direction
}

// MediaDataEvent получена собранная единица медиа
type MediaDataEvent struct {
	Data *MediaData
}

// MediaIngressStats статистика входящего медиа потока
type MediaIngressStats struct {
	Mid     Mid
	Packets uint64
	Bytes   uint64
	Lost    int64
	Jitter  float64
}

// MediaEgressStats статистика исходящего медиа потока
type MediaEgressStats struct {
	Mid     Mid
	Packets uint64
	Bytes   uint64
}

// PeerStats сводная статистика транспорта
type PeerStats struct {
	BytesRx uint64
	BytesTx uint64
	RTT     float64
}

func (ConnectedEvent) Name() string    { return "connected" }
func (IceStateEvent) Name() string     { return "ice_state" }
func (MediaAddedEvent) Name() string   { return "media_added" }
func (MediaDataEvent) Name() string    { return "media_data" }
func (MediaIngressStats) Name() string { return "ingress_stats" }
func (MediaEgressStats) Name() string  { return "egress_stats" }
func (PeerStats) Name() string         { return "peer_stats" }

func (e IceStateEvent) String() string {
	return fmt.Sprintf("ice connection state: %s", e.State)
}

func (e MediaAddedEvent) String() string {
	return fmt.Sprintf("media added: mid=%s kind=%s dir=%s", e.Mid, e.Kind, e.Direction)
}
