package server

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

func loadCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cert: %v", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("no CERTIFICATE block in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}
	return cert
}

func TestEnsureCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "cert_key.pem")
	identity := bridge.NewIdentity("b6:82:d3:45:ac:29", "127.0.0.1")

	if err := EnsureCertificate(certFile, keyFile, identity); err != nil {
		t.Fatalf("EnsureCertificate: %v", err)
	}

	cert := loadCert(t, certFile)
	if cert.Subject.CommonName != "b682d3fffe45ac29" {
		t.Errorf("CN = %q", cert.Subject.CommonName)
	}
	if got := cert.SerialNumber.Text(16); got != "b682d3fffe45ac29" {
		t.Errorf("serial = %s", got)
	}
	if cert.Subject.Organization[0] != "Philips Hue" {
		t.Errorf("organization = %v", cert.Subject.Organization)
	}
	if cert.IsCA {
		t.Error("certificate marked as CA")
	}
	if cert.SignatureAlgorithm != x509.ECDSAWithSHA256 {
		t.Errorf("signature algorithm = %v", cert.SignatureAlgorithm)
	}

	keyInfo, err := os.Stat(keyFile)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if keyInfo.Mode().Perm() != 0o600 {
		t.Errorf("key mode = %v", keyInfo.Mode().Perm())
	}
}

func TestEnsureCertificateIsStable(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "cert_key.pem")
	identity := bridge.NewIdentity("b6:82:d3:45:ac:29", "127.0.0.1")

	if err := EnsureCertificate(certFile, keyFile, identity); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatal(err)
	}

	// Matching certificate is left alone.
	if err := EnsureCertificate(certFile, keyFile, identity); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("matching certificate was regenerated")
	}
}

func TestEnsureCertificateRegeneratesOnIdentityChange(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "cert_key.pem")

	if err := EnsureCertificate(certFile, keyFile, bridge.NewIdentity("b6:82:d3:45:ac:29", "127.0.0.1")); err != nil {
		t.Fatal(err)
	}

	changed := bridge.NewIdentity("aa:bb:cc:dd:ee:ff", "127.0.0.1")
	if err := EnsureCertificate(certFile, keyFile, changed); err != nil {
		t.Fatal(err)
	}
	cert := loadCert(t, certFile)
	if cert.Subject.CommonName != "aabbccfffeddeeff" {
		t.Errorf("CN = %q after identity change", cert.Subject.CommonName)
	}
}
