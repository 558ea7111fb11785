package signaling

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/whipcast/pkg/rtc"
)

func TestSanitizeAnswer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "нестандартный origin и пустое имя",
			input: "v=0\r\no=Broadcaster Inc 123 1 IN IP4 10.0.0.1\r\ns=\r\nt=0 0\r\n",
			want:  "v=0\r\no=- Inc 123 1 IN IP4 10.0.0.1\r\ns=-\r\nt=0 0\r\n",
		},
		{
			name:  "LF окончания сохраняются",
			input: "v=0\no=user 1 1 IN IP4 1.2.3.4\ns=Some Session\nt=0 0\n",
			want:  "v=0\no=- 1 1 IN IP4 1.2.3.4\ns=-\nt=0 0\n",
		},
		{
			name:  "без завершающего перевода строки",
			input: "v=0\r\ns=x",
			want:  "v=0\r\ns=-",
		},
		{
			name:  "o= без пробелов",
			input: "o=garbage\n",
			want:  "o=-\n",
		},
		{
			name:  "без o= и s= текст не меняется",
			input: "v=0\r\nt=0 0\r\na=group:BUNDLE 0\r\n",
			want:  "v=0\r\nt=0 0\r\na=group:BUNDLE 0\r\n",
		},
		{
			name:  "пустой ответ",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAnswer(tt.input))
		})
	}
}

func TestSanitizeAnswerKeepsOtherLines(t *testing.T) {
	input := strings.Join([]string{
		"v=0",
		"o=weird-server 4611731400430051336 2 IN IP4 127.0.0.1",
		"s=weird",
		"t=0 0",
		"a=group:BUNDLE 0",
		"m=video 9 UDP/TLS/RTP/SAVPF 102",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=rtpmap:102 H264/90000",
		"",
	}, "\r\n")

	out := SanitizeAnswer(input)
	in := strings.Split(input, "\r\n")
	got := strings.Split(out, "\r\n")
	require.Len(t, got, len(in))

	for i := range in {
		switch {
		case strings.HasPrefix(in[i], "o="):
			assert.True(t, strings.HasPrefix(got[i], "o=- "))
			assert.Equal(t, in[i][strings.IndexByte(in[i], ' '):], got[i][len("o=-"):])
		case strings.HasPrefix(in[i], "s="):
			assert.Equal(t, SessionNamePlaceholder, got[i])
		default:
			assert.Equal(t, in[i], got[i])
		}
	}

	desc, err := ParseSDP(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, VideoMids(desc))
}

func TestParseSDPError(t *testing.T) {
	_, err := ParseSDP("this is not sdp")
	require.Error(t, err)
	assert.ErrorIs(t, err, rtc.ErrSDP)
}

func TestParseClaims(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		WhipURL:          "https://example.com/whip/endpoint",
		RegisteredClaims: jwt.RegisteredClaims{ID: "stream-1"},
	})
	signed, err := token.SignedString([]byte("any-key"))
	require.NoError(t, err)

	claims, err := ParseClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/whip/endpoint", claims.WhipURL)
	assert.Equal(t, "stream-1", claims.ID)

	t.Run("без whip_url", func(t *testing.T) {
		empty, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("k"))
		require.NoError(t, err)
		_, err = ParseClaims(empty)
		assert.ErrorIs(t, err, rtc.ErrSignaling)
	})

	t.Run("мусор вместо токена", func(t *testing.T) {
		_, err := ParseClaims("not.a.jwt")
		assert.ErrorIs(t, err, rtc.ErrSignaling)
	})
}
