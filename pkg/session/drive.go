package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/arzzra/whipcast/pkg/rtc"
)

// EventKind результат одного шага drive
type EventKind int

const (
	// EventContinue шаг без внешне видимого эффекта
	EventContinue EventKind = iota
	// EventMedia получен медиа блок
	EventMedia
	// EventDisconnected сессия завершена
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventContinue:
		return "continue"
	case EventMedia:
		return "media"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event результат Drive. Media заполнено только для EventMedia.
type Event struct {
	Kind  EventKind
	Media *rtc.MediaData
}

var continueEvent = Event{Kind: EventContinue}

// Drive выполняет один шаг: забирает вывод машины состояний и, если ждать
// нечего, блокируется до датаграммы или дедлайна таймаута.
// Любая ошибка фатальна для сессии.
func (s *Session) Drive(ctx context.Context) (Event, error) {
	if s.disconnected || s.closed {
		return Event{}, rtc.NewError(rtc.ErrorCodeStateMachine, "сессия уже завершена")
	}

	out, err := s.sm.PollOutput()
	if err != nil {
		return Event{}, rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка опроса машины состояний")
	}

	switch out.Kind {
	case rtc.OutputEvent:
		return s.handleEvent(out.Event), nil
	case rtc.OutputTransmit:
		s.transmit(out.Transmit)
		return continueEvent, nil
	}

	now := time.Now()
	if !out.Timeout.After(now) {
		if err := s.sm.HandleInput(rtc.TimeoutInput(now)); err != nil {
			return Event{}, rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка обработки таймаута")
		}
		return continueEvent, nil
	}

	timer := time.NewTimer(out.Timeout.Sub(now))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()

	case <-s.sm.Notify():
		// вывод появился асинхронно, заберем его следующим шагом
		return continueEvent, nil

	case dg := <-s.reader.C():
		if dg.err != nil {
			if isConnReset(dg.err) {
				s.log.Debug("connection reset ignored", slog.String("error", dg.err.Error()))
				return continueEvent, nil
			}
			return Event{}, rtc.WrapError(rtc.ErrorCodeTransport, dg.err, "ошибка чтения сокета")
		}

		datagramsReceived.Inc()
		in := rtc.ReceiveInput(dg.at, &rtc.Receive{
			Proto:       rtc.ProtocolUDP,
			Source:      dg.src,
			Destination: s.local,
			Contents:    dg.data,
		})
		if err := s.sm.HandleInput(in); err != nil {
			return Event{}, rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка обработки датаграммы")
		}

	case <-timer.C:
		if err := s.sm.HandleInput(rtc.TimeoutInput(time.Now())); err != nil {
			return Event{}, rtc.WrapError(rtc.ErrorCodeStateMachine, err, "ошибка обработки таймаута")
		}
	}

	return continueEvent, nil
}

func (s *Session) handleEvent(e rtc.Event) Event {
	eventsTotal.WithLabelValues(e.Name()).Inc()

	switch ev := e.(type) {
	case rtc.ConnectedEvent:
		s.log.Info("connected")
		if s.lifecycle.Can(formEventName(StateNegotiated, StateConnected)) {
			_ = s.setState(StateConnected)
		}

	case rtc.IceStateEvent:
		s.log.Info("ice state changed", slog.String("state", ev.State.String()))
		switch ev.State {
		case rtc.IceDisconnected, rtc.IceFailed, rtc.IceClosed:
			s.disconnected = true
			if s.lifecycle.Can(string(StateDisconnected)) {
				_ = s.setState(StateDisconnected)
			}
			return Event{Kind: EventDisconnected}
		}

	case rtc.MediaDataEvent:
		return Event{Kind: EventMedia, Media: ev.Data}

	case rtc.MediaAddedEvent:
		s.log.Info("media added",
			slog.String("mid", string(ev.Mid)),
			slog.String("kind", ev.Kind.String()),
			slog.String("direction", ev.Direction.String()))

	case rtc.MediaIngressStats:
		s.log.Debug("ingress stats",
			slog.String("mid", string(ev.Mid)),
			slog.Uint64("packets", ev.Packets),
			slog.Uint64("bytes", ev.Bytes),
			slog.Int64("lost", ev.Lost),
			slog.Float64("jitter", ev.Jitter))

	case rtc.MediaEgressStats:
		s.log.Debug("egress stats",
			slog.String("mid", string(ev.Mid)),
			slog.Uint64("packets", ev.Packets),
			slog.Uint64("bytes", ev.Bytes))

	case rtc.PeerStats:
		s.log.Debug("peer stats",
			slog.Uint64("bytes_rx", ev.BytesRx),
			slog.Uint64("bytes_tx", ev.BytesTx),
			slog.Float64("rtt", ev.RTT))

	default:
		s.log.Debug("event ignored", slog.String("event", e.Name()))
	}

	return continueEvent
}

// transmit отправляет датаграмму, ошибки отправки не фатальны
func (s *Session) transmit(t *rtc.Transmit) {
	if _, err := s.conn.WriteTo(t.Contents, t.Destination); err != nil {
		transmitErrors.Inc()
		s.transmitLog.Do(func() {
			s.log.Warn("transmit failed",
				slog.String("destination", addrString(t.Destination)),
				slog.String("error", err.Error()))
		})
		return
	}
	datagramsSent.Inc()
}

func addrString(a interface{ String() string }) string {
	if a == nil {
		return "<nil>"
	}
	return a.String()
}
