// Package signaling реализует HTTP сторону WHIP/WHEP: отправку offer с
// обработкой редиректов, очистку и проверку answer.
package signaling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/arzzra/whipcast/pkg/rtc"
)

const (
	// ContentTypeSDP тип тела запросов и ответов WHIP/WHEP
	ContentTypeSDP = "application/sdp"

	// DefaultMaxRedirects максимальное число переходов по Location
	DefaultMaxRedirects = 10

	// DefaultTimeout таймаут одного HTTP запроса
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent значение заголовка User-Agent
	DefaultUserAgent = "whipcast"

	// maxAnswerSize предел размера тела ответа
	maxAnswerSize = 1 << 20
)

// Config параметры клиента сигнализации
type Config struct {
	MaxRedirects int
	Timeout      time.Duration
	UserAgent    string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		MaxRedirects: DefaultMaxRedirects,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
	}
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.MaxRedirects < 0 {
		return fmt.Errorf("отрицательный лимит редиректов: %d", c.MaxRedirects)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("таймаут должен быть положительным")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("пустой User-Agent")
	}
	return nil
}

// Client выполняет WHIP/WHEP обмен offer/answer
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient создает клиента сигнализации.
// Редиректы обрабатываются вручную: стандартный клиент превращает POST в GET на 302/303.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация сигнализации: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: logger.With(slog.String("component", "signaling")),
	}, nil
}

// Exchange отправляет offer на endpoint и возвращает очищенный answer и URL
// созданного ресурса. Каждый 3xx с Location повторяет POST на новый адрес.
func (c *Client) Exchange(ctx context.Context, endpoint, token, offer string) (answer string, resource string, err error) {
	target, err := url.Parse(endpoint)
	if err != nil {
		return "", "", rtc.WrapError(rtc.ErrorCodeSignaling, err, "некорректный URL")
	}

	for redirects := 0; ; redirects++ {
		resp, err := c.post(ctx, target, token, offer)
		if err != nil {
			return "", "", err
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			drain(resp)
			if location == "" {
				return "", "", rtc.NewStatusError(resp.StatusCode, "редирект без Location")
			}
			if redirects >= c.cfg.MaxRedirects {
				return "", "", rtc.NewStatusError(resp.StatusCode,
					fmt.Sprintf("превышен лимит редиректов (%d)", c.cfg.MaxRedirects))
			}

			next, err := target.Parse(location)
			if err != nil {
				return "", "", rtc.WrapError(rtc.ErrorCodeSignaling, err, "некорректный Location")
			}
			c.log.Info("following redirect", slog.Int("status", resp.StatusCode), slog.String("location", next.String()))
			target = next
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			c.log.Warn("unexpected signaling status", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
			return "", "", rtc.NewStatusError(resp.StatusCode, "сервер не создал сессию")
		}
		if err != nil {
			return "", "", rtc.WrapError(rtc.ErrorCodeSignaling, err, "ошибка чтения answer")
		}

		resource = target.String()
		if loc := resp.Header.Get("Location"); loc != "" {
			if u, err := target.Parse(loc); err == nil {
				resource = u.String()
			}
		}
		return SanitizeAnswer(string(body)), resource, nil
	}
}

// Delete завершает сессию на сервере запросом DELETE на URL ресурса
func (c *Client) Delete(ctx context.Context, resource, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return rtc.WrapError(rtc.ErrorCodeSignaling, err, "ошибка создания запроса")
	}
	c.setHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return rtc.WrapError(rtc.ErrorCodeSignaling, err, "ошибка DELETE")
	}
	drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rtc.NewStatusError(resp.StatusCode, "сервер отклонил DELETE")
	}
	return nil
}

func (c *Client) post(ctx context.Context, target *url.URL, token, offer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader([]byte(offer)))
	if err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeSignaling, err, "ошибка создания запроса")
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", ContentTypeSDP)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, rtc.WrapError(rtc.ErrorCodeSignaling, err, "запрос отменен")
		}
		return nil, rtc.WrapError(rtc.ErrorCodeSignaling, err, "ошибка HTTP запроса")
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", ContentTypeSDP)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status <= 399
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAnswerSize))
	resp.Body.Close()
}
