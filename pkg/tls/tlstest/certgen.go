// Package tlstest generates certificates for tests that need a TLS server
// and client credentials.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertificateConfig contains options for certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate
	Organization string
	// Common name (CN) for the certificate
	CommonName string
	// Additional DNS names for the certificate
	DNSNames []string
	// Additional IP addresses for the certificate
	IPAddresses []net.IP
	// Validity duration
	ValidFor time.Duration
	// Whether this is a CA certificate
	IsCA bool
	// Client marks the certificate for client authentication instead of
	// server authentication.
	Client bool
}

// DefaultCertificateConfig returns a default configuration suitable for a
// local test server.
func DefaultCertificateConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "grpcprobe",
		CommonName:   "localhost",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		ValidFor:     24 * time.Hour,
	}
}

// GeneratedCertificate contains a generated certificate and its private key.
type GeneratedCertificate struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CertPEM     []byte
	KeyPEM      []byte
}

// GeneratePrivateKey generates a new ECDSA private key using P-256 curve.
func GeneratePrivateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return key, nil
}

// CreateCertificateTemplate creates an x509 certificate template with the given config.
func CreateCertificateTemplate(cfg *CertificateConfig) (*x509.Certificate, error) {
	if cfg == nil {
		cfg = DefaultCertificateConfig()
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	usage := x509.ExtKeyUsageServerAuth
	if cfg.Client {
		usage = x509.ExtKeyUsageClientAuth
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(cfg.ValidFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{usage},
		BasicConstraintsValid: true,
		DNSNames:              cfg.DNSNames,
		IPAddresses:           cfg.IPAddresses,
	}

	if cfg.IsCA {
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
		template.ExtKeyUsage = nil
	}

	return template, nil
}

// GenerateSelfSignedCert generates a self-signed certificate with the given configuration.
func GenerateSelfSignedCert(cfg *CertificateConfig) (*GeneratedCertificate, error) {
	return GenerateSignedCert(cfg, nil)
}

// GenerateSignedCert generates a certificate signed by parent, or a
// self-signed one when parent is nil.
func GenerateSignedCert(cfg *CertificateConfig, parent *GeneratedCertificate) (*GeneratedCertificate, error) {
	privateKey, err := GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	template, err := CreateCertificateTemplate(cfg)
	if err != nil {
		return nil, err
	}

	issuer, signer := template, privateKey
	if parent != nil {
		if !parent.Certificate.IsCA {
			return nil, errors.New("parent certificate is not a CA")
		}
		issuer, signer = parent.Certificate, parent.PrivateKey
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, issuer, &privateKey.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyPEM, err := EncodeKeyToPEM(privateKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedCertificate{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertPEM:     EncodeCertToPEM(certDER),
		KeyPEM:      keyPEM,
	}, nil
}

// EncodeCertToPEM encodes a DER certificate to PEM format.
func EncodeCertToPEM(certDER []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
}

// EncodeKeyToPEM encodes an ECDSA private key to PEM format.
func EncodeKeyToPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), nil
}

// SaveCertToFiles saves a certificate and private key to PEM files.
func SaveCertToFiles(cert *GeneratedCertificate, certPath, keyPath string) error {
	if cert == nil {
		return errors.New("certificate cannot be nil")
	}

	if err := os.MkdirAll(filepath.Dir(certPath), 0755); err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	if err := os.WriteFile(certPath, cert.CertPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate file: %w", err)
	}

	// Write private key with restricted permissions
	if err := os.WriteFile(keyPath, cert.KeyPEM, 0600); err != nil {
		// Clean up cert file if key write fails
		_ = os.Remove(certPath)
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}
