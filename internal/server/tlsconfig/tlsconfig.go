// Package tlsconfig turns configured certificate material into a *tls.Config
// shared by the transport and the hot channel.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/atlanticdynamic/lynxserve/internal/config"
	"golang.org/x/crypto/pkcs12"
)

var (
	ErrLoad             = errors.New("failed to load TLS material")
	ErrNoPrivateKey     = errors.New("no PEM private key found")
	ErrPassphraseNeeded = errors.New("private key is encrypted and no passphrase was given")
)

// Load reads the certificate and key described by cfg. A nil cfg yields a
// nil config and no error.
func Load(cfg *config.TLS) (*tls.Config, error) {
	if cfg == nil {
		return nil, nil
	}

	var (
		cert tls.Certificate
		err  error
	)
	if cfg.PFXFile != "" {
		cert, err = loadPFX(cfg.PFXFile, cfg.Passphrase)
	} else {
		cert, err = loadPEM(cfg.CertFile, cfg.KeyFile, cfg.Passphrase)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadPEM(certFile, keyFile, passphrase string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM, err = decryptKey(keyPEM, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", keyFile, err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// decryptKey returns keyPEM with a legacy encrypted PEM block replaced by its
// plaintext form. Unencrypted keys are returned unchanged.
func decryptKey(keyPEM []byte, passphrase string) ([]byte, error) {
	rest := keyPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoPrivateKey
		}
		if block.Type == "CERTIFICATE" {
			continue
		}
		//nolint:staticcheck // legacy encrypted PEM is what --https-pass unlocks
		if !x509.IsEncryptedPEMBlock(block) {
			return keyPEM, nil
		}
		if passphrase == "" {
			return nil, ErrPassphraseNeeded
		}
		//nolint:staticcheck
		der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, err
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
	}
}

func loadPFX(path, passphrase string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, err
	}
	key, leaf, err := pkcs12.Decode(data, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", path, err)
	}
	return tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
