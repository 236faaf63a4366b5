// Package signer computes and verifies the RSA signatures the payment
// gateway requires over canonical strings. Signing is PKCS#1 v1.5 with a
// SHA-1 digest by default; SHA-256 must be selected explicitly to match the
// algorithm configured on the gateway side.
package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"paygate/pkg/errors"
)

// HashAlgorithm selects the digest used inside the signature primitive.
// It must match between signer and verifier; there is no auto-detection.
type HashAlgorithm int

const (
	// SHA1 is the gateway's legacy default.
	SHA1 HashAlgorithm = iota
	SHA256
)

func (h HashAlgorithm) String() string {
	switch h {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// ParseHashAlgorithm parses the configuration form of a hash algorithm.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha1", "sha-1":
		return SHA1, nil
	case "sha256", "sha-256":
		return SHA256, nil
	}
	return SHA1, errors.New(errors.KindConfig, "unsupported hash algorithm", s)
}

func (h HashAlgorithm) digest(message string) ([]byte, crypto.Hash, error) {
	switch h {
	case SHA1:
		sum := sha1.Sum([]byte(message))
		return sum[:], crypto.SHA1, nil
	case SHA256:
		sum := sha256.Sum256([]byte(message))
		return sum[:], crypto.SHA256, nil
	}
	return nil, 0, errors.New(errors.KindCrypto, "unsupported hash algorithm", h.String())
}

// Sign computes the RSA PKCS#1 v1.5 signature of the UTF-8 bytes of message
// and returns it as standard base64 text.
func Sign(message string, key *rsa.PrivateKey, h HashAlgorithm) (string, error) {
	hashed, hash, err := h.digest(message)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, hashed)
	if err != nil {
		return "", errors.Wrap(err, errors.KindCrypto, "signing failed", "rsa pkcs1v15")
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature against message. A signature that simply
// does not match yields (false, nil); only structurally invalid input such
// as malformed base64 is an error.
func Verify(message, signature string, key *rsa.PublicKey, h HashAlgorithm) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, errors.Wrap(err, errors.KindCrypto, "malformed signature", "invalid base64")
	}
	hashed, hash, err := h.digest(message)
	if err != nil {
		return false, err
	}
	if err := rsa.VerifyPKCS1v15(key, hash, hashed, sig); err != nil {
		return false, nil
	}
	return true, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file. PKCS#1 and PKCS#8
// encodings are accepted; passphrase-protected keys are decrypted with
// password. Key material is returned to the caller and never cached here.
func LoadPrivateKey(path, password string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindCrypto, "failed to read private key file", path)
	}

	if password != "" {
		raw, err := ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(password))
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCrypto, "failed to decrypt private key", path)
		}
		key, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New(errors.KindCrypto, "private key is not RSA", fmt.Sprintf("%T", raw))
		}
		return key, nil
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New(errors.KindCrypto, "malformed private key", "no PEM block found")
	}
	if _, encrypted := block.Headers["DEK-Info"]; encrypted {
		return nil, errors.New(errors.KindCrypto, "private key is passphrase-protected", "no password configured")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCrypto, "malformed private key", "pkcs1")
		}
		return key, nil
	case "PRIVATE KEY":
		raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCrypto, "malformed private key", "pkcs8")
		}
		key, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New(errors.KindCrypto, "private key is not RSA", fmt.Sprintf("%T", raw))
		}
		return key, nil
	}
	return nil, errors.New(errors.KindCrypto, "unsupported private key type", block.Type)
}

// LoadPublicKey loads an RSA public key from a PEM file. Both bare PKIX
// public keys and certificates are accepted; gateways distribute either.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindCrypto, "failed to read public key file", path)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New(errors.KindCrypto, "malformed public key", "no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		raw, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCrypto, "malformed public key", "pkix")
		}
		key, ok := raw.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New(errors.KindCrypto, "public key is not RSA", fmt.Sprintf("%T", raw))
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCrypto, "malformed certificate", path)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New(errors.KindCrypto, "certificate key is not RSA", fmt.Sprintf("%T", cert.PublicKey))
		}
		return key, nil
	}
	return nil, errors.New(errors.KindCrypto, "unsupported public key type", block.Type)
}

// SignWithKeyFile loads the private key for the duration of the call and
// signs message with it. The canonical string depends on live request data
// and a timestamp, so there is nothing worth caching at this level.
func SignWithKeyFile(message, keyPath, password string, h HashAlgorithm) (string, error) {
	key, err := LoadPrivateKey(keyPath, password)
	if err != nil {
		return "", err
	}
	return Sign(message, key, h)
}

// VerifyWithKeyFile loads the public key for the duration of the call and
// verifies signature against message.
func VerifyWithKeyFile(message, signature, keyPath string, h HashAlgorithm) (bool, error) {
	key, err := LoadPublicKey(keyPath)
	if err != nil {
		return false, err
	}
	return Verify(message, signature, key, h)
}
