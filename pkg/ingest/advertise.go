package ingest

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType DNS-SD тип сервиса WHIP endpoint
	ServiceType   = "_whip._tcp"
	serviceDomain = "local."
)

// MDNSServer зарегистрированный mDNS сервис
type MDNSServer interface {
	Shutdown()
}

// RegisterFunc регистрирует сервис, в продакшене zeroconf.Register
type RegisterFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertisement объявление endpoint в локальной сети
type Advertisement struct {
	server MDNSServer
	log    *slog.Logger
}

// Advertise объявляет WHIP endpoint через mDNS. instance пустой означает имя хоста.
func Advertise(instance string, port int, register RegisterFunc, logger *slog.Logger) (*Advertisement, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if register == nil {
		register = zeroconfRegister
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("некорректный порт: %d", port)
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "whipcast"
		}
		instance = host
	}

	txt := []string{"path=/", "proto=whip"}
	srv, err := register(instance, ServiceType, serviceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации mDNS сервиса: %w", err)
	}

	log := logger.With(slog.String("component", "mdns"))
	log.Info("endpoint advertised", slog.String("instance", instance), slog.String("service", ServiceType), slog.Int("port", port))
	return &Advertisement{server: srv, log: log}, nil
}

// Shutdown снимает объявление
func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
	a.log.Info("advertisement withdrawn")
}

// ListenPort извлекает порт из адреса вида ":1337" или "host:1337"
func ListenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("некорректный адрес %q: %w", addr, err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return 0, fmt.Errorf("некорректный порт %q: %w", portStr, err)
	}
	return port, nil
}
