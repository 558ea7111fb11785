// Package candidate перечисляет сетевые интерфейсы и регистрирует host кандидаты сессии.
package candidate

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"

	"github.com/arzzra/whipcast/pkg/rtc"
)

// InterfaceLister источник сетевых интерфейсов.
// В продакшене это stdnet.Net, в тестах виртуальный список.
type InterfaceLister interface {
	Interfaces() ([]*transport.Interface, error)
}

// Registrar принимает найденные кандидаты
type Registrar interface {
	AddLocalCandidate(rtc.Candidate) error
}

// SystemInterfaces возвращает lister поверх интерфейсов ОС
func SystemInterfaces() (InterfaceLister, error) {
	n, err := stdnet.NewNet()
	if err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeNoCandidates, err, "ошибка доступа к сетевым интерфейсам")
	}
	return n, nil
}

// Discover регистрирует по одному host кандидату на каждый IPv4 адрес, который не
// является loopback или link-local. Все кандидаты используют один локальный порт.
// Возвращает адрес, которым помечаются входящие датаграммы (последний зарегистрированный).
func Discover(lister InterfaceLister, port int, reg Registrar, logger *slog.Logger) (*net.UDPAddr, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "candidate"))

	ifaces, err := lister.Interfaces()
	if err != nil {
		return nil, rtc.WrapError(rtc.ErrorCodeNoCandidates, err, "ошибка перечисления интерфейсов")
	}

	var chosen *net.UDPAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			log.Debug("interface addresses unavailable", slog.String("iface", iface.Name), slog.String("error", err.Error()))
			continue
		}

		for _, a := range addrs {
			ip := addrIP(a)
			if !usable(ip) {
				continue
			}

			addr := &net.UDPAddr{IP: ip, Port: port}
			c, err := rtc.NewHostCandidate(addr, rtc.ProtocolUDP)
			if err != nil {
				return nil, rtc.WrapError(rtc.ErrorCodeNoCandidates, err, "некорректный кандидат")
			}
			if err := reg.AddLocalCandidate(c); err != nil {
				return nil, fmt.Errorf("ошибка регистрации кандидата %s: %w", addr, err)
			}

			log.Info("host candidate", slog.String("iface", iface.Name), slog.String("addr", addr.String()))
			chosen = addr
		}
	}

	if chosen == nil {
		return nil, rtc.NewError(rtc.ErrorCodeNoCandidates, "нет IPv4 интерфейсов кроме loopback и link-local")
	}
	return chosen, nil
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	case *net.UDPAddr:
		return v.IP
	}
	return nil
}

// usable IPv6 пока пропускается
func usable(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	return !v4.IsLoopback() && !v4.IsLinkLocalUnicast() && !v4.IsUnspecified()
}
