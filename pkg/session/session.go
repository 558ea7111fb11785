// Package session ведет одну WebRTC сессию: владеет UDP сокетом и машиной
// состояний согласования, продвигает ее по шагам и отправляет видео.
//
// Session не потокобезопасна. Drive, SendVideo и согласование вызываются
// из одной горутины, которая владеет сессией.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"golang.org/x/time/rate"

	"github.com/arzzra/whipcast/pkg/candidate"
	"github.com/arzzra/whipcast/pkg/rtc"
)

const (
	DefaultStreamID = "whipcast"
	DefaultTrackID  = "video"
)

// Config параметры сессии
type Config struct {
	RTC    rtc.Config
	Socket SocketConfig
	// BindAddr локальный адрес сокета, порт 0 выбирает ОС
	BindAddr string
	StreamID string
	TrackID  string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		RTC:      rtc.DefaultConfig(),
		Socket:   DefaultSocketConfig(),
		BindAddr: "0.0.0.0:0",
		StreamID: DefaultStreamID,
		TrackID:  DefaultTrackID,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if err := c.RTC.Validate(); err != nil {
		return err
	}
	if err := c.Socket.Validate(); err != nil {
		return err
	}
	if c.BindAddr == "" {
		return fmt.Errorf("пустой адрес привязки")
	}
	if c.StreamID == "" || c.TrackID == "" {
		return fmt.Errorf("идентификаторы потока и трека обязательны")
	}
	return nil
}

// Session одна WebRTC сессия
type Session struct {
	id  string
	cfg Config
	log *slog.Logger

	sm     rtc.StateMachine
	conn   net.PacketConn
	reader *socketReader
	// local адрес назначения, которым помечаются входящие датаграммы
	local *net.UDPAddr

	videoMid     rtc.Mid
	lifecycle    *fsm.FSM
	disconnected bool
	closed       bool

	transmitLog rate.Sometimes
}

// New открывает UDP сокет, регистрирует host кандидаты и создает машину состояний pion
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация сессии: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", cfg.BindAddr)
	if err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeTransport, err, "ошибка открытия UDP сокета")
	}
	conn := pc.(*net.UDPConn)
	if err := applySocketOptions(conn, cfg.Socket); err != nil {
		logger.Warn("socket options not applied", slog.String("error", err.Error()))
	}

	sm, err := rtc.NewPion(cfg.RTC, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	lister, err := candidate.SystemInterfaces()
	if err != nil {
		conn.Close()
		sm.Close()
		return nil, err
	}

	port := conn.LocalAddr().(*net.UDPAddr).Port
	local, err := candidate.Discover(lister, port, sm, logger)
	if err != nil {
		conn.Close()
		sm.Close()
		return nil, err
	}

	return newSession(cfg, sm, conn, local, logger), nil
}

func newSession(cfg Config, sm rtc.StateMachine, conn net.PacketConn, local *net.UDPAddr, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		cfg:         cfg,
		log:         logger.With(slog.String("component", "session"), slog.String("session_id", id)),
		sm:          sm,
		conn:        conn,
		local:       local,
		transmitLog: rate.Sometimes{Interval: time.Second},
	}
	s.initFSM()
	if err := s.setState(StateGathering); err != nil {
		s.log.Error("lifecycle init failed", slog.String("error", err.Error()))
	}
	s.reader = newSocketReader(conn)
	activeSessions.Inc()

	s.log.Info("session created",
		slog.String("local", conn.LocalAddr().String()),
		slog.String("candidate", local.String()))
	return s
}

// ID уникальный идентификатор сессии
func (s *Session) ID() string {
	return s.id
}

// VideoMid идентификатор видео линии, пустой до завершения согласования
func (s *Session) VideoMid() rtc.Mid {
	return s.videoMid
}

// LocalAddr адрес сокета сессии
func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close закрывает сокет и машину состояний
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	activeSessions.Dec()

	if s.lifecycle.Can(string(StateDisconnected)) {
		_ = s.setState(StateDisconnected)
	}

	smErr := s.sm.Close()
	connErr := s.conn.Close()
	s.reader.stop()

	if smErr != nil {
		return fmt.Errorf("ошибка закрытия машины состояний: %w", smErr)
	}
	if connErr != nil && !isClosed(connErr) {
		return fmt.Errorf("ошибка закрытия сокета: %w", connErr)
	}
	return nil
}
