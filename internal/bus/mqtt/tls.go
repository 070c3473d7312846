package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrTLSCAFileRequired = errors.New("mqtt: tls ca file required")
	ErrTLSKeyPair        = errors.New("mqtt: tls cert and key must be set together")
)

// TLSConfig enables ssl:// broker connections. CertFile and KeyFile are
// only needed when the broker requires client certificates.
type TLSConfig struct {
	Enabled            bool
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.CAFile) == "" && !c.InsecureSkipVerify {
		return ErrTLSCAFileRequired
	}
	if (strings.TrimSpace(c.CertFile) == "") != (strings.TrimSpace(c.KeyFile) == "") {
		return ErrTLSKeyPair
	}
	return nil
}

func (c TLSConfig) clientConfig(host string) (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
		ServerName:         host,
	}
	if name := strings.TrimSpace(c.ServerName); name != "" {
		cfg.ServerName = name
	}

	if caPath := strings.TrimSpace(c.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("mqtt: read tls ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("mqtt: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	if strings.TrimSpace(c.CertFile) != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("mqtt: load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
