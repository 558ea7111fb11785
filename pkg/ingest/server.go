// Package ingest минимальный WHIP endpoint: принимает offer POST запросом и
// отвечает answer. Дополнительно отдает метрики Prometheus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arzzra/whipcast/pkg/rtc"
	"github.com/arzzra/whipcast/pkg/signaling"
)

const (
	// DefaultListen адрес endpoint по умолчанию
	DefaultListen = ":1337"

	// maxOfferSize предел размера тела запроса
	maxOfferSize = 1 << 20

	shutdownTimeout = 5 * time.Second
)

// OfferHandler принимает offer и возвращает answer, см. whip.Receiver
type OfferHandler interface {
	HandleOffer(ctx context.Context, offer string) (string, error)
}

// Config параметры HTTP endpoint
type Config struct {
	Listen  string
	Metrics bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{Listen: DefaultListen, Metrics: true}
}

// Server HTTP сервер приема WHIP offer
type Server struct {
	cfg     Config
	engine  *gin.Engine
	handler OfferHandler
	log     *slog.Logger
}

// NewServer создает сервер и регистрирует маршруты
func NewServer(cfg Config, handler OfferHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		engine:  e,
		handler: handler,
		log:     logger.With(slog.String("component", "ingest")),
	}
	e.Use(s.accessLog)
	s.initRoute()
	return s
}

func (s *Server) initRoute() {
	s.engine.POST("/", s.postOffer)
	if s.cfg.Metrics {
		s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) postOffer(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOfferSize))
	if err != nil {
		c.String(http.StatusBadRequest, "ошибка чтения offer: %v", err)
		return
	}
	offer := string(body)
	if len(offer) == 0 {
		c.String(http.StatusBadRequest, "пустой offer")
		return
	}
	if _, err := signaling.ParseSDP(offer); err != nil {
		c.String(http.StatusBadRequest, "%v", err)
		return
	}

	answer, err := s.handler.HandleOffer(c.Request.Context(), offer)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rtc.ErrSDP) {
			status = http.StatusUnprocessableEntity
		}
		s.log.Warn("offer rejected", slog.String("error", err.Error()))
		c.String(status, "%v", err)
		return
	}

	c.Header("Location", "/")
	c.Data(http.StatusCreated, signaling.ContentTypeSDP, []byte(answer))
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("http request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("latency", time.Since(start)))
}

// Serve принимает соединения на ln до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
		}
		return nil
	}
}

// ListenAndServe слушает cfg.Listen до отмены ctx
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("ошибка прослушивания %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}
