package rtc

import (
	"crypto/x509"
	"fmt"

	"github.com/pion/dtls/v3/pkg/crypto/selfsign"
	"github.com/pion/webrtc/v4"
)

// newCertificate генерирует самоподписанный ECDSA сертификат для DTLS
func newCertificate() (webrtc.Certificate, error) {
	tlsCert, err := selfsign.GenerateSelfSigned()
	if err != nil {
		return webrtc.Certificate{}, fmt.Errorf("ошибка генерации DTLS сертификата: %w", err)
	}
	if len(tlsCert.Certificate) == 0 {
		return webrtc.Certificate{}, fmt.Errorf("пустая цепочка DTLS сертификата")
	}

	x509Cert, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return webrtc.Certificate{}, fmt.Errorf("ошибка разбора DTLS сертификата: %w", err)
	}

	cert := webrtc.CertificateFromX509(tlsCert.PrivateKey, x509Cert)
	return cert, nil
}
