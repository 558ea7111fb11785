package signaling

import (
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/arzzra/whipcast/pkg/rtc"
)

const (
	// OriginPlaceholder заменяет имя пользователя в строке o=
	OriginPlaceholder = "-"
	// SessionNamePlaceholder заменяет строку s= целиком
	SessionNamePlaceholder = "s=-"
)

// SanitizeAnswer исправляет строки o= и s=, которые некоторые серверы формируют
// с нарушением RFC 4566. Первый токен o= становится "-", каждая строка s=
// становится "s=-". Остальные строки и их окончания не меняются.
func SanitizeAnswer(answer string) string {
	var b strings.Builder
	b.Grow(len(answer))

	rest := answer
	for len(rest) > 0 {
		line, eol := rest, ""
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, eol = rest[:i], "\n"
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		if strings.HasSuffix(line, "\r") {
			line = line[:len(line)-1]
			eol = "\r" + eol
		}

		switch {
		case strings.HasPrefix(line, "o="):
			b.WriteString(sanitizeOrigin(line))
		case strings.HasPrefix(line, "s="):
			b.WriteString(SessionNamePlaceholder)
		default:
			b.WriteString(line)
		}
		b.WriteString(eol)
	}
	return b.String()
}

func sanitizeOrigin(line string) string {
	value := line[len("o="):]
	if i := strings.IndexByte(value, ' '); i >= 0 {
		return "o=" + OriginPlaceholder + value[i:]
	}
	return "o=" + OriginPlaceholder
}

// ParseSDP проверяет синтаксис описания сессии
func ParseSDP(text string) (*sdp.SessionDescription, error) {
	desc := &sdp.SessionDescription{}
	if err := desc.UnmarshalString(text); err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeSDP, err, "описание сессии не разобрано")
	}
	return desc, nil
}

// VideoMids возвращает mid всех видео линий описания
func VideoMids(desc *sdp.SessionDescription) []string {
	var mids []string
	for _, m := range desc.MediaDescriptions {
		if m.MediaName.Media != "video" {
			continue
		}
		if mid, ok := m.Attribute(sdp.AttrKeyMID); ok {
			mids = append(mids, mid)
		}
	}
	return mids
}
