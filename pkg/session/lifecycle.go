package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"
)

// State наблюдаемое состояние жизненного цикла сессии
type State string

const (
	StateNew          State = "new"
	StateGathering    State = "gathering"
	StateOfferPending State = "offer_pending"
	StateNegotiated   State = "negotiated"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

func (s State) String() string {
	return string(s)
}

func formEventName(src, dst State) string {
	return fmt.Sprintf("%s->%s", src, dst)
}

/*
Диаграмма переходов:
[new] → [gathering] → [offer_pending] → [negotiated] → [connected] → [disconnected]
[gathering] → [negotiated]                 входящий offer
[любое кроме disconnected] → [disconnected]
*/
func (s *Session) initFSM() {
	live := []string{
		string(StateNew), string(StateGathering), string(StateOfferPending),
		string(StateNegotiated), string(StateConnected),
	}

	s.lifecycle = fsm.NewFSM(
		string(StateNew),
		fsm.Events{
			{Name: formEventName(StateNew, StateGathering), Src: []string{string(StateNew)}, Dst: string(StateGathering)},
			{Name: formEventName(StateGathering, StateOfferPending), Src: []string{string(StateGathering)}, Dst: string(StateOfferPending)},
			{Name: formEventName(StateOfferPending, StateNegotiated), Src: []string{string(StateOfferPending)}, Dst: string(StateNegotiated)},
			{Name: formEventName(StateGathering, StateNegotiated), Src: []string{string(StateGathering)}, Dst: string(StateNegotiated)},
			{Name: formEventName(StateNegotiated, StateConnected), Src: []string{string(StateNegotiated)}, Dst: string(StateConnected)},
			{Name: string(StateDisconnected), Src: live, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"after_event": s.afterStateChange,
		},
	)
}

func (s *Session) afterStateChange(_ context.Context, e *fsm.Event) {
	s.log.Debug("session state changed", slog.String("from", e.Src), slog.String("to", e.Dst))
}

// setState выполняет переход из текущего состояния в dst
func (s *Session) setState(dst State) error {
	name := formEventName(s.State(), dst)
	if dst == StateDisconnected {
		name = string(StateDisconnected)
	}
	if err := s.lifecycle.Event(context.Background(), name); err != nil {
		return fmt.Errorf("недопустимый переход %s -> %s: %w", s.State(), dst, err)
	}
	return nil
}

// State возвращает текущее состояние сессии
func (s *Session) State() State {
	return State(s.lifecycle.Current())
}
