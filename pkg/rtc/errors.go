package rtc

import (
	"fmt"
)

// ErrorCode классифицирует ошибки сессии по категориям.
// Категория определяет политику распространения: ошибки сигнализации прерывают
// установку сессии, ошибки внутри шага drive завершают сессию.
type ErrorCode int

const (
	// ErrorCodeSignaling ошибки HTTP транспорта и статусов WHIP/WHEP
	ErrorCodeSignaling ErrorCode = iota + 2000
	// ErrorCodeSDP некорректный или неприемлемый offer/answer
	ErrorCodeSDP
	// ErrorCodeTransport фатальная ошибка сокета
	ErrorCodeTransport
	// ErrorCodeNoCandidates не найдено ни одного пригодного интерфейса
	ErrorCodeNoCandidates
	// ErrorCodeSend исходящая запись медиа отклонена
	ErrorCodeSend
	// ErrorCodeStateMachine внутреннее рассогласование состояния согласования
	ErrorCodeStateMachine
)

// String возвращает строковое представление кода ошибки
func (code ErrorCode) String() string {
	switch code {
	case ErrorCodeSignaling:
		return "SignalingError"
	case ErrorCodeSDP:
		return "SdpError"
	case ErrorCodeTransport:
		return "TransportError"
	case ErrorCodeNoCandidates:
		return "NoCandidates"
	case ErrorCodeSend:
		return "SendError"
	case ErrorCodeStateMachine:
		return "StateMachineError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// Error базовая ошибка сессии.
// StatusCode заполняется только для ошибок сигнализации, когда сервер ответил
// неожиданным HTTP статусом.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Wrapped    error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

// Unwrap поддерживает errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is сравнивает ошибки по коду, что позволяет писать errors.Is(err, rtc.ErrSDP)
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Сигнальные значения для errors.Is
var (
	ErrSignaling    = &Error{Code: ErrorCodeSignaling, Message: "ошибка сигнализации"}
	ErrSDP          = &Error{Code: ErrorCodeSDP, Message: "ошибка SDP"}
	ErrTransport    = &Error{Code: ErrorCodeTransport, Message: "ошибка транспорта"}
	ErrNoCandidates = &Error{Code: ErrorCodeNoCandidates, Message: "нет пригодных кандидатов"}
	ErrSend         = &Error{Code: ErrorCodeSend, Message: "ошибка отправки медиа"}
	ErrStateMachine = &Error{Code: ErrorCodeStateMachine, Message: "ошибка машины состояний"}
)

// NewError создает ошибку с указанным кодом
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError оборачивает ошибку с указанным кодом.
// Если err уже имеет тот же код, она возвращается без изменений.
func WrapError(code ErrorCode, err error, message string) *Error {
	if e, ok := err.(*Error); ok && e.Code == code {
		return e
	}
	return &Error{Code: code, Message: message, Wrapped: err}
}

// NewStatusError создает ошибку сигнализации с HTTP статусом ответа
func NewStatusError(status int, message string) *Error {
	return &Error{Code: ErrorCodeSignaling, Message: message, StatusCode: status}
}

// CodeOf извлекает код ошибки из цепочки, 0 если ошибка не *Error
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
