package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

const certValidity = 3650 * 24 * time.Hour

// EnsureCertificate makes sure a self-signed HTTPS certificate bound to
// this bridge id exists on disk. A certificate minted for a different
// bridge id (the machine's MAC changed) is regenerated.
func EnsureCertificate(certFile, keyFile string, identity bridge.Identity) error {
	if certificateMatches(certFile, identity) {
		return nil
	}
	return generateCertificate(certFile, keyFile, identity)
}

// certificateMatches reports whether the on-disk certificate carries
// this bridge id as its common name.
func certificateMatches(certFile string, identity bridge.Identity) bool {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return false
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return cert.Subject.CommonName == strings.ToLower(identity.BridgeID)
}

// generateCertificate mints a Hue-compatible self-signed certificate:
// ECDSA P-256, the bridge id as serial number and common name.
func generateCertificate(certFile, keyFile string, identity bridge.Identity) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate certificate key: %w", err)
	}

	serial, ok := new(big.Int).SetString(identity.BridgeID, 16)
	if !ok {
		return fmt.Errorf("bridge id %q is not a valid serial number", identity.BridgeID)
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	ski := sha1.Sum(pub)

	now := time.Now().UTC()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:      []string{"NL"},
			Organization: []string{"Philips Hue"},
			CommonName:   strings.ToLower(identity.BridgeID),
		},
		NotBefore:             now,
		NotAfter:              now.Add(certValidity),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski[:],
		AuthorityKeyId:        ski[:],
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	log.Debug().Str("component", "server").Str("cn", template.Subject.CommonName).Msg("Certificate generated")
	return nil
}
