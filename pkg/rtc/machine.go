package rtc

import (
	"time"
)

// StateMachine машина состояний одного peer соединения.
//
// Методы не блокируются на сети. Все кроме Notify должны вызываться из одной
// горутины, которая ведет сессию.
type StateMachine interface {
	// AddLocalCandidate регистрирует локальный host кандидат
	AddLocalCandidate(c Candidate) error

	// AddMedia добавляет медиа линию и формирует offer.
	// Offer сразу становится ожидающим: до AcceptAnswer второй offer невозможен.
	AddMedia(kind MediaKind, dir Direction, streamID, trackID string) (Offer, *PendingOffer, error)

	// AcceptAnswer применяет ответ к ожидающему offer
	AcceptAnswer(pending *PendingOffer, answer string) error

	// AcceptOffer принимает удаленный offer и возвращает локальный answer
	AcceptOffer(offer string) (string, error)

	// PollOutput возвращает следующий результат: событие, датаграмму или дедлайн
	PollOutput() (Output, error)

	// HandleInput продвигает машину входящей датаграммой либо таймаутом
	HandleInput(in Input) error

	// Notify сигнализирует о появлении нового вывода вне HandleInput.
	// Может возвращать nil, если машина полностью синхронна.
	Notify() <-chan struct{}

	// Codecs возвращает согласованные параметры кодеков
	Codecs() []CodecParams

	// Writer возвращает писатель медиа для линии mid
	Writer(mid Mid) (MediaWriter, bool)

	// Mids возвращает все известные медиа линии
	Mids() []Mid

	Close() error
}

// MediaWriter пишет закодированные единицы медиа в линию
type MediaWriter interface {
	// Write пакетизирует data и отправляет с RTP временем rtpTime
	Write(pt uint8, wallclock time.Time, rtpTime uint32, data []byte) error
}

// Rebase переводит длительность в единицы тактовой частоты кодека с округлением
// до ближайшего такта. Результат идет по модулю 2^32, как RTP timestamp.
func Rebase(pts time.Duration, clockRate uint32) uint32 {
	if pts < 0 {
		pts = 0
	}
	sec := uint64(pts / time.Second)
	rem := uint64(pts % time.Second)
	ticks := sec*uint64(clockRate) + (rem*uint64(clockRate)+uint64(time.Second)/2)/uint64(time.Second)
	return uint32(ticks)
}
