package api

import (
	"crypto/tls"
	"errors"
	"fmt"
)

// ErrPartialTLS is returned when only one of the certificate and key is set.
var ErrPartialTLS = errors.New("tls requires both certificate and key")

// TLSFiles names the certificate and key files served by the API.
type TLSFiles struct {
	CertFile string
	KeyFile  string
}

// Enabled returns true if both files are configured.
func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" && f.KeyFile != ""
}

// Load returns the server TLS config. It returns nil, nil when TLS is not
// configured.
func (f TLSFiles) Load() (*tls.Config, error) {
	if !f.Enabled() {
		if f.CertFile != "" || f.KeyFile != "" {
			return nil, ErrPartialTLS
		}
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
