package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// MinRSABits is the smallest modulus we are willing to sign with.
const MinRSABits = 2048

// RSAKeyPair is a freshly generated key pair in PEM form. The private half is
// PKCS1, the public half PKIX.
type RSAKeyPair struct {
	PrivatePEM []byte
	PublicPEM  []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the given modulus size.
func GenerateRSAKeyPair(bits int) (RSAKeyPair, error) {
	if bits < MinRSABits {
		return RSAKeyPair{}, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return RSAKeyPair{}, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}

	publicPEM, err := MarshalRSAPublicKey(&privateKey.PublicKey)
	if err != nil {
		return RSAKeyPair{}, err
	}

	return RSAKeyPair{
		PrivatePEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		}),
		PublicPEM: publicPEM,
	}, nil
}

// MarshalRSAPublicKey encodes pub as a PKIX "PUBLIC KEY" PEM block.
func MarshalRSAPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParseRSAPublicKey decodes a PKIX or PKCS1 public key PEM.
func ParseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("cryptox: invalid PEM for RSA public key")
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PKIX: %w", err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("cryptox: not an RSA public key")
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PKCS1: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}
}
