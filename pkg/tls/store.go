// Package tls builds client TLS configurations for environments.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ClientOptions are the TLS settings of one environment. Paths are read
// when a connection is configured, not when the config is loaded.
type ClientOptions struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `json:"caFile,omitempty" yaml:"caFile,omitempty"`

	// CertFile and KeyFile hold the client certificate for mutual TLS.
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`

	// ServerName overrides the name verified against the server certificate.
	ServerName string `json:"serverName,omitempty" yaml:"serverName,omitempty"`

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// Validate checks that the options are consistent without reading files.
func (o *ClientOptions) Validate() error {
	if o == nil {
		return nil
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		return errors.New("certFile and keyFile must be set together")
	}
	return nil
}

// ClientConfig builds a client tls.Config. serverName is used when the
// options do not set one. Nil options give a config that trusts the system
// roots.
func ClientConfig(o *ClientOptions, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}
	if o == nil {
		return cfg, nil
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.ServerName != "" {
		cfg.ServerName = o.ServerName
	}
	cfg.InsecureSkipVerify = o.InsecureSkipVerify //nolint:gosec // explicit per-environment opt-in

	if o.CAFile != "" {
		pool, err := LoadCertPool(o.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if o.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// LoadCertPool returns the system pool with the certificates in path added.
func LoadCertPool(path string) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
