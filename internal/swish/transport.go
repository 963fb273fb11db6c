package swish

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jespen/studioclay-sub001/internal/config"
)

const clientTimeout = 12 * time.Second

// NewHTTPClient builds the certificate-bound client used for every outbound
// Swish call. Construction fails fast when any required material is missing.
//
// Production verifies the peer against the system trust store; the Swish test
// environment signs with its own CA, so outside production the supplied root
// CA replaces the system pool. This asymmetry mirrors the real certificate
// topology of the two environments and must not be "fixed".
func NewHTTPClient(cfg config.SwishConfig, production bool) (*http.Client, error) {
	if cfg.CertFile == "" {
		return nil, &CertificateError{File: "cert", Err: errors.New("path not configured")}
	}
	if cfg.KeyFile == "" {
		return nil, &CertificateError{File: "key", Err: errors.New("path not configured")}
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, &CertificateError{File: cfg.CertFile, Err: err}
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if !production {
		if cfg.RootCAFile == "" {
			return nil, &CertificateError{File: "root ca", Err: errors.New("path not configured")}
		}
		caPEM, err := os.ReadFile(cfg.RootCAFile)
		if err != nil {
			return nil, &CertificateError{File: cfg.RootCAFile, Err: err}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, &CertificateError{File: cfg.RootCAFile, Err: errors.New("no certificates found in file")}
		}
		tlsCfg.RootCAs = pool
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsCfg,
		},
	}, nil
}
