package signaling

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/arzzra/whipcast/pkg/rtc"
)

// Claims поля токена доступа, которые несут адрес WHIP endpoint
type Claims struct {
	WhipURL string `json:"whip_url"`
	jwt.RegisteredClaims
}

// ParseClaims разбирает bearer токен без проверки подписи.
// Подпись проверяет сервер, клиенту нужен только адрес.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeSignaling, err, "токен не разобран")
	}
	if claims.WhipURL == "" {
		return nil, rtc.NewError(rtc.ErrorCodeSignaling, "в токене нет whip_url")
	}
	return claims, nil
}
