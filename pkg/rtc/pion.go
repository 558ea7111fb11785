package rtc

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

const (
	// idleTimeout дедлайн, возвращаемый когда сбор статистики отключен
	idleTimeout = time.Second

	// gatherTimeout максимальное ожидание сбора host кандидатов
	gatherTimeout = 5 * time.Second

	// maxQueuedEvents предел очереди событий, сверх него медиа события отбрасываются
	maxQueuedEvents = 1024
)

// Pion реализует StateMachine поверх pion/webrtc.
//
// Каждый host кандидат представлен виртуальным PacketConn, обернутым в
// ice.UDPMuxDefault. PeerConnection создается лениво при первом согласовании,
// когда набор кандидатов уже известен.
type Pion struct {
	cfg Config
	log *slog.Logger
	lf  logging.LoggerFactory

	mu        sync.Mutex
	events    []Event
	transmits []*Transmit
	notify    chan struct{}
	closed    bool
	ssrcMids  map[uint32]Mid
	nextStats time.Time

	conns    []*bridgeConn
	mux      *ice.MultiUDPMuxDefault
	pc       *webrtc.PeerConnection
	writers  map[Mid]*trackWriter
	pending  *PendingOffer
	offerSeq uint64
}

// NewPion создает машину состояний pion с указанной конфигурацией
func NewPion(cfg Config, logger *slog.Logger) (*Pion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация rtc: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pion{
		cfg:      cfg,
		log:      logger.With(slog.String("component", "rtc")),
		lf:       NewLoggerFactory(logger),
		notify:   make(chan struct{}, 1),
		ssrcMids: make(map[uint32]Mid),
		writers:  make(map[Mid]*trackWriter),
	}, nil
}

// AddLocalCandidate регистрирует host кандидат. После создания PeerConnection
// набор кандидатов зафиксирован.
func (p *Pion) AddLocalCandidate(c Candidate) error {
	if p.pc != nil {
		return NewError(ErrorCodeStateMachine, "кандидаты нельзя добавлять после начала согласования")
	}
	if c.Proto() != ProtocolUDP || c.Addr() == nil {
		return NewError(ErrorCodeStateMachine, fmt.Sprintf("неподдерживаемый кандидат: %s", c))
	}
	for _, conn := range p.conns {
		if conn.local.IP.Equal(c.Addr().IP) && conn.local.Port == c.Addr().Port {
			return nil
		}
	}

	p.conns = append(p.conns, newBridgeConn(c.Addr(), p.enqueueTransmit))
	p.log.Debug("local candidate added", slog.String("candidate", c.String()))
	return nil
}

// ensurePeerConnection создает PeerConnection с UDP mux поверх кандидатов
func (p *Pion) ensurePeerConnection() error {
	if p.pc != nil {
		return nil
	}
	if len(p.conns) == 0 {
		return NewError(ErrorCodeStateMachine, "нет локальных кандидатов")
	}

	m := &webrtc.MediaEngine{}
	err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     p.cfg.Codec.MimeType,
			ClockRate:    videoClockRate,
			SDPFmtpLine:  p.cfg.Codec.FmtpLine(),
			RTCPFeedback: videoFeedback(),
		},
		PayloadType: webrtc.PayloadType(p.cfg.PayloadType),
	}, webrtc.RTPCodecTypeVideo)
	if err != nil {
		return WrapError(ErrorCodeStateMachine, err, "ошибка регистрации кодека")
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return WrapError(ErrorCodeStateMachine, err, "ошибка регистрации интерсепторов")
	}

	muxes := make([]ice.UDPMux, 0, len(p.conns))
	for _, conn := range p.conns {
		muxes = append(muxes, ice.NewUDPMuxDefault(ice.UDPMuxParams{
			Logger:  p.lf.NewLogger("udpmux"),
			UDPConn: conn,
		}))
	}
	p.mux = ice.NewMultiUDPMuxDefault(muxes...)

	se := webrtc.SettingEngine{LoggerFactory: p.lf}
	se.SetICEUDPMux(p.mux)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)

	cert, err := newCertificate()
	if err != nil {
		return WrapError(ErrorCodeStateMachine, err, "ошибка создания DTLS идентичности")
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		Certificates: []webrtc.Certificate{cert},
	})
	if err != nil {
		return WrapError(ErrorCodeStateMachine, err, "ошибка создания PeerConnection")
	}

	pc.OnConnectionStateChange(p.onConnectionState)
	pc.OnICEConnectionStateChange(p.onICEConnectionState)
	pc.OnTrack(p.onTrack)

	p.pc = pc
	p.mu.Lock()
	p.nextStats = time.Now().Add(p.cfg.StatsInterval)
	p.mu.Unlock()
	return nil
}

// AddMedia добавляет видео линию и формирует offer
func (p *Pion) AddMedia(kind MediaKind, dir Direction, streamID, trackID string) (Offer, *PendingOffer, error) {
	if p.pending != nil {
		return Offer{}, nil, NewError(ErrorCodeStateMachine, "уже есть ожидающий offer")
	}
	if kind != MediaKindVideo {
		return Offer{}, nil, NewError(ErrorCodeStateMachine, fmt.Sprintf("неподдерживаемый тип медиа: %s", kind))
	}
	if err := p.ensurePeerConnection(); err != nil {
		return Offer{}, nil, err
	}

	var (
		tr      *webrtc.RTPTransceiver
		track   *webrtc.TrackLocalStaticRTP
		err     error
		pionDir = toPionDirection(dir)
	)
	switch dir {
	case DirectionSendOnly, DirectionSendRecv:
		track, err = webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
			MimeType:    p.cfg.Codec.MimeType,
			ClockRate:   videoClockRate,
			SDPFmtpLine: p.cfg.Codec.FmtpLine(),
		}, trackID, streamID)
		if err != nil {
			return Offer{}, nil, WrapError(ErrorCodeStateMachine, err, "ошибка создания локального трека")
		}
		tr, err = p.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{Direction: pionDir})
	case DirectionRecvOnly:
		tr, err = p.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: pionDir})
	default:
		return Offer{}, nil, NewError(ErrorCodeStateMachine, fmt.Sprintf("неподдерживаемое направление: %s", dir))
	}
	if err != nil {
		return Offer{}, nil, WrapError(ErrorCodeStateMachine, err, "ошибка добавления трансивера")
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return Offer{}, nil, WrapError(ErrorCodeSDP, err, "ошибка создания offer")
	}
	if err := p.setLocalAndGather(offer); err != nil {
		return Offer{}, nil, err
	}

	mid := Mid(tr.Mid())
	if track != nil {
		p.writers[mid] = newTrackWriter(track, p.cfg.MTU)
		go p.drainRTCP(tr.Sender())
		p.rememberSenderSSRC(tr.Sender(), mid)
	}

	p.offerSeq++
	p.pending = NewPendingOffer(p.offerSeq, mid)
	return Offer{SDP: p.pc.LocalDescription().SDP}, p.pending, nil
}

// AcceptAnswer применяет answer к ожидающему offer. Offer расходуется
// независимо от результата.
func (p *Pion) AcceptAnswer(pending *PendingOffer, answer string) error {
	if pending == nil || p.pending == nil || pending.id != p.pending.id {
		return NewError(ErrorCodeStateMachine, "answer без соответствующего ожидающего offer")
	}
	p.pending = nil

	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
	if err != nil {
		return WrapError(ErrorCodeSDP, err, "answer не принят")
	}

	p.emitMediaAdded()
	return nil
}

// AcceptOffer принимает удаленный offer и возвращает answer
func (p *Pion) AcceptOffer(offer string) (string, error) {
	if p.pending != nil {
		return "", NewError(ErrorCodeStateMachine, "нельзя принять offer при ожидающем локальном offer")
	}
	if err := p.ensurePeerConnection(); err != nil {
		return "", err
	}

	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	})
	if err != nil {
		return "", WrapError(ErrorCodeSDP, err, "offer не принят")
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", WrapError(ErrorCodeSDP, err, "ошибка создания answer")
	}
	if err := p.setLocalAndGather(answer); err != nil {
		return "", err
	}

	p.emitMediaAdded()
	return p.pc.LocalDescription().SDP, nil
}

// setLocalAndGather применяет локальное описание и ждет сбора кандидатов
func (p *Pion) setLocalAndGather(desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return WrapError(ErrorCodeSDP, err, "ошибка установки локального описания")
	}

	select {
	case <-gathered:
		return nil
	case <-time.After(gatherTimeout):
		return NewError(ErrorCodeStateMachine, "истекло время сбора кандидатов")
	}
}

func (p *Pion) emitMediaAdded() {
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Mid() == "" {
			continue
		}
		kind := MediaKindVideo
		if tr.Kind() == webrtc.RTPCodecTypeAudio {
			kind = MediaKindAudio
		}
		p.enqueueEvent(MediaAddedEvent{
			Mid:       Mid(tr.Mid()),
			Kind:      kind,
			Direction: fromPionDirection(tr.Direction()),
		})
	}
}

// PollOutput возвращает событие, датаграмму либо дедлайн следующего таймаута
func (p *Pion) PollOutput() (Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Output{}, NewError(ErrorCodeStateMachine, "машина состояний закрыта")
	}

	if len(p.events) > 0 {
		e := p.events[0]
		p.events[0] = nil
		p.events = p.events[1:]
		return EventOutput(e), nil
	}
	if len(p.transmits) > 0 {
		t := p.transmits[0]
		p.transmits[0] = nil
		p.transmits = p.transmits[1:]
		return TransmitOutput(t), nil
	}

	if p.cfg.StatsInterval > 0 && !p.nextStats.IsZero() {
		return TimeoutOutput(p.nextStats), nil
	}
	return TimeoutOutput(time.Now().Add(idleTimeout)), nil
}

// HandleInput передает датаграмму в кандидат-получатель либо продвигает таймеры
func (p *Pion) HandleInput(in Input) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return NewError(ErrorCodeStateMachine, "машина состояний закрыта")
	}

	switch in.Kind {
	case InputTimeout:
		p.handleTimeout(in.Now)
		return nil
	case InputReceive:
		if in.Receive == nil {
			return NewError(ErrorCodeStateMachine, "пустая датаграмма")
		}
		conn := p.connFor(in.Receive.Destination)
		if conn == nil {
			return NewError(ErrorCodeStateMachine, "нет кандидата для входящей датаграммы")
		}
		data := make([]byte, len(in.Receive.Contents))
		copy(data, in.Receive.Contents)
		if !conn.deliver(data, in.Receive.Source) {
			p.log.Debug("inbound datagram dropped", slog.String("source", addrString(in.Receive.Source)))
		}
		return nil
	default:
		return NewError(ErrorCodeStateMachine, fmt.Sprintf("неизвестный вход: %d", in.Kind))
	}
}

func (p *Pion) handleTimeout(now time.Time) {
	if p.pc == nil || p.cfg.StatsInterval <= 0 {
		return
	}

	p.mu.Lock()
	due := !now.Before(p.nextStats)
	if due {
		p.nextStats = now.Add(p.cfg.StatsInterval)
	}
	p.mu.Unlock()

	if due {
		p.collectStats()
	}
}

// connFor выбирает виртуальный сокет по адресу назначения
func (p *Pion) connFor(dst net.Addr) *bridgeConn {
	if len(p.conns) == 0 {
		return nil
	}
	if udp, ok := dst.(*net.UDPAddr); ok {
		for _, conn := range p.conns {
			if conn.local.IP.Equal(udp.IP) && conn.local.Port == udp.Port {
				return conn
			}
		}
	}
	return p.conns[len(p.conns)-1]
}

// Notify сигнализирует о новом выводе, поступившем из горутин pion
func (p *Pion) Notify() <-chan struct{} {
	return p.notify
}

// Codecs возвращает согласованные кодеки всех трансиверов
func (p *Pion) Codecs() []CodecParams {
	if p.pc == nil {
		return nil
	}

	var (
		result []CodecParams
		seen   = make(map[uint8]bool)
	)
	add := func(codecs []webrtc.RTPCodecParameters) {
		for _, c := range codecs {
			pt := uint8(c.PayloadType)
			if seen[pt] {
				continue
			}
			seen[pt] = true
			result = append(result, CodecParams{
				PayloadType: pt,
				MimeType:    c.MimeType,
				ClockRate:   c.ClockRate,
				Fmtp:        c.SDPFmtpLine,
			})
		}
	}

	for _, tr := range p.pc.GetTransceivers() {
		if s := tr.Sender(); s != nil {
			add(s.GetParameters().Codecs)
		} else if r := tr.Receiver(); r != nil {
			add(r.GetParameters().Codecs)
		}
	}
	return result
}

// Writer возвращает писатель для исходящей линии
func (p *Pion) Writer(mid Mid) (MediaWriter, bool) {
	w, ok := p.writers[mid]
	if !ok {
		return nil, false
	}
	return w, true
}

// Mids возвращает идентификаторы всех медиа линий
func (p *Pion) Mids() []Mid {
	if p.pc == nil {
		return nil
	}
	var mids []Mid
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Mid() != "" {
			mids = append(mids, Mid(tr.Mid()))
		}
	}
	return mids
}

// Close закрывает PeerConnection и виртуальные сокеты
func (p *Pion) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.events = nil
	p.transmits = nil
	p.mu.Unlock()

	var firstErr error
	if p.pc != nil {
		if err := p.pc.Close(); err != nil {
			firstErr = err
		}
	}
	if p.mux != nil {
		if err := p.mux.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, conn := range p.conns {
		_ = conn.Close()
	}
	return firstErr
}

func (p *Pion) enqueueEvent(e Event) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, isMedia := e.(MediaDataEvent); isMedia && len(p.events) >= maxQueuedEvents {
		p.mu.Unlock()
		p.log.Warn("event queue full, media dropped")
		return
	}
	p.events = append(p.events, e)
	p.mu.Unlock()
	p.wake()
}

func (p *Pion) enqueueTransmit(t *Transmit) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.transmits = append(p.transmits, t)
	p.mu.Unlock()
	p.wake()
}

func (p *Pion) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pion) onConnectionState(state webrtc.PeerConnectionState) {
	p.log.Debug("peer connection state", slog.String("state", state.String()))
	if state == webrtc.PeerConnectionStateConnected {
		p.enqueueEvent(ConnectedEvent{})
	}
}

func (p *Pion) onICEConnectionState(state webrtc.ICEConnectionState) {
	p.enqueueEvent(IceStateEvent{State: fromPionICEState(state)})
}

func videoFeedback() []webrtc.RTCPFeedback {
	return []webrtc.RTCPFeedback{
		{Type: "goog-remb"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}
}

func toPionDirection(d Direction) webrtc.RTPTransceiverDirection {
	switch d {
	case DirectionSendOnly:
		return webrtc.RTPTransceiverDirectionSendonly
	case DirectionRecvOnly:
		return webrtc.RTPTransceiverDirectionRecvonly
	case DirectionSendRecv:
		return webrtc.RTPTransceiverDirectionSendrecv
	default:
		return webrtc.RTPTransceiverDirectionInactive
	}
}

func fromPionDirection(d webrtc.RTPTransceiverDirection) Direction {
	switch d {
	case webrtc.RTPTransceiverDirectionSendonly:
		return DirectionSendOnly
	case webrtc.RTPTransceiverDirectionRecvonly:
		return DirectionRecvOnly
	case webrtc.RTPTransceiverDirectionSendrecv:
		return DirectionSendRecv
	default:
		return DirectionInactive
	}
}

func fromPionICEState(s webrtc.ICEConnectionState) IceConnectionState {
	switch s {
	case webrtc.ICEConnectionStateChecking:
		return IceChecking
	case webrtc.ICEConnectionStateConnected:
		return IceConnected
	case webrtc.ICEConnectionStateCompleted:
		return IceCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return IceDisconnected
	case webrtc.ICEConnectionStateFailed:
		return IceFailed
	case webrtc.ICEConnectionStateClosed:
		return IceClosed
	default:
		return IceNew
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
