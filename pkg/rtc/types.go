// Package rtc описывает машину состояний WebRTC соединения в стиле sans-IO.
//
// Машина не владеет сокетом: вызывающая сторона опрашивает ее через PollOutput,
// отправляет Transmit датаграммы сама и передает входящие датаграммы и таймауты
// через HandleInput. Реализация поверх pion/webrtc находится в pion.go.
package rtc

import (
	"fmt"
	"net"
	"time"
)

// Direction направление медиа потока в SDP
type Direction int

const (
	DirectionInactive Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionSendRecv
)

func (d Direction) String() string {
	switch d {
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// MediaKind тип медиа линии
type MediaKind int

const (
	MediaKindVideo MediaKind = iota
	MediaKindAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Mid идентификатор согласованной медиа линии. Пустая строка означает,
// что линия еще не выделена.
type Mid string

// Protocol транспортный протокол кандидата
type Protocol int

const (
	ProtocolUDP Protocol = iota
)

func (p Protocol) String() string {
	if p == ProtocolUDP {
		return "udp"
	}
	return "unknown"
}

// Candidate host кандидат: адрес и протокол, объявляемые удаленной стороне
type Candidate struct {
	addr  *net.UDPAddr
	proto Protocol
}

// NewHostCandidate создает host кандидат для указанного адреса
func NewHostCandidate(addr *net.UDPAddr, proto Protocol) (Candidate, error) {
	if addr == nil || addr.IP == nil {
		return Candidate{}, fmt.Errorf("адрес кандидата не может быть пустым")
	}
	if addr.IP.IsUnspecified() {
		return Candidate{}, fmt.Errorf("адрес кандидата %s не должен быть unspecified", addr.IP)
	}
	if addr.Port <= 0 || addr.Port > 65535 {
		return Candidate{}, fmt.Errorf("неверный порт кандидата: %d", addr.Port)
	}
	if proto != ProtocolUDP {
		return Candidate{}, fmt.Errorf("неподдерживаемый протокол кандидата: %s", proto)
	}
	return Candidate{
		addr:  &net.UDPAddr{IP: addr.IP, Port: addr.Port},
		proto: proto,
	}, nil
}

// Addr возвращает копию адреса кандидата
func (c Candidate) Addr() *net.UDPAddr {
	if c.addr == nil {
		return nil
	}
	return &net.UDPAddr{IP: append(net.IP(nil), c.addr.IP...), Port: c.addr.Port}
}

// Proto возвращает протокол кандидата
func (c Candidate) Proto() Protocol {
	return c.proto
}

func (c Candidate) String() string {
	return fmt.Sprintf("host %s/%s", c.addr, c.proto)
}

// IceConnectionState состояние ICE соединения
type IceConnectionState int

const (
	IceNew IceConnectionState = iota
	IceChecking
	IceConnected
	IceCompleted
	IceDisconnected
	IceFailed
	IceClosed
)

func (s IceConnectionState) String() string {
	switch s {
	case IceNew:
		return "new"
	case IceChecking:
		return "checking"
	case IceConnected:
		return "connected"
	case IceCompleted:
		return "completed"
	case IceDisconnected:
		return "disconnected"
	case IceFailed:
		return "failed"
	case IceClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Offer локальный SDP offer
type Offer struct {
	SDP string
}

// PendingOffer ожидающий ответа offer. Существует не более одного на сессию.
type PendingOffer struct {
	id  uint64
	mid Mid
}

// NewPendingOffer создает дескриптор ожидающего offer.
// Используется реализациями StateMachine.
func NewPendingOffer(id uint64, mid Mid) *PendingOffer {
	return &PendingOffer{id: id, mid: mid}
}

// ID порядковый номер offer в сессии
func (p *PendingOffer) ID() uint64 { return p.id }

// Mid медиа линия, добавленная этим offer
func (p *PendingOffer) Mid() Mid { return p.mid }

// CodecParams согласованные параметры кодека
type CodecParams struct {
	PayloadType uint8
	MimeType    string
	ClockRate   uint32
	Fmtp        string
}

// MediaData собранная из RTP единица медиа (для H.264 - access unit в Annex-B)
type MediaData struct {
	Mid         Mid
	PayloadType uint8
	RTPTime     uint32
	Network     time.Time
	Data        []byte
}

// Receive входящая датаграмма
type Receive struct {
	Proto       Protocol
	Source      net.Addr
	Destination net.Addr
	Contents    []byte
}

// Transmit датаграмма, которую нужно отправить из локального сокета
type Transmit struct {
	Proto       Protocol
	Source      net.Addr
	Destination net.Addr
	Contents    []byte
}

// OutputKind тип результата PollOutput
type OutputKind int

const (
	OutputTimeout OutputKind = iota
	OutputEvent
	OutputTransmit
)

// Output результат одного опроса машины состояний
type Output struct {
	Kind     OutputKind
	Event    Event
	Transmit *Transmit
	Timeout  time.Time
}

// EventOutput оборачивает событие в Output
func EventOutput(e Event) Output { return Output{Kind: OutputEvent, Event: e} }

// TransmitOutput оборачивает датаграмму в Output
func TransmitOutput(t *Transmit) Output { return Output{Kind: OutputTransmit, Transmit: t} }

// TimeoutOutput дедлайн, после которого машину нужно продвинуть
func TimeoutOutput(at time.Time) Output { return Output{Kind: OutputTimeout, Timeout: at} }

// InputKind тип входа машины состояний
type InputKind int

const (
	InputTimeout InputKind = iota
	InputReceive
)

// Input вход машины состояний: истекший таймаут либо входящая датаграмма
type Input struct {
	Kind    InputKind
	Now     time.Time
	Receive *Receive
}

// TimeoutInput продвигает время машины до now
func TimeoutInput(now time.Time) Input { return Input{Kind: InputTimeout, Now: now} }

// ReceiveInput передает входящую датаграмму
func ReceiveInput(now time.Time, r *Receive) Input {
	return Input{Kind: InputReceive, Now: now, Receive: r}
}
