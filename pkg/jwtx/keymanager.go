package jwtx

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/aussiebroadwan/quill/pkg/cryptox"
)

const (
	AlgorithmRS256 = cryptox.AlgRS256
	AlgorithmES256 = cryptox.AlgES256
	AlgorithmEdDSA = cryptox.AlgEdDSA
)

// KeyManager owns the signing keys of this instance and the verifier that
// accepts tokens signed by any of them.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	algorithm string
	signers   []Signer
}

type KeyManagerOptions struct {
	// Algorithm is one of RS256, ES256 or EdDSA. Defaults to EdDSA.
	Algorithm string

	// Issuer and Audience are enforced on every verified token.
	Issuer   string
	Audience string

	// Leeway tolerated for clock skew.
	Leeway time.Duration

	// RSABits for RS256 keys, defaults to 3072.
	RSABits int

	// NumKeys generated in ephemeral mode, 1..10, defaults to 2.
	NumKeys int
}

func (o *KeyManagerOptions) normalise() error {
	if o.Issuer == "" {
		return errors.New("jwtx: issuer is required")
	}
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmEdDSA
	}
	switch o.Algorithm {
	case AlgorithmEdDSA, AlgorithmES256, AlgorithmRS256:
	default:
		return fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", o.Algorithm)
	}
	if o.RSABits == 0 {
		o.RSABits = 3072
	}
	o.NumKeys = min(max(o.NumKeys, 1), 10)
	return nil
}

// NewEphemeralKeyManager generates in-memory keys. Every restart invalidates
// outstanding access tokens, which refresh rotation recovers from.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.NumKeys == 0 {
		opts.NumKeys = 2
	}
	if err := opts.normalise(); err != nil {
		return nil, err
	}

	signers := make([]Signer, 0, opts.NumKeys)
	for i := range opts.NumKeys {
		pemKey, err := cryptox.GenerateSigningKey(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key %d: %w", i+1, err)
		}
		kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate kid: %w", err)
		}
		s, err := NewSigner("quill-"+kid, pemKey)
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}
	return newKeyManager(opts, signers)
}

// NewFileKeyManager loads the PEM private key at path, creating it with
// opts.Algorithm when missing. The kid is derived from the public key so it
// stays stable across restarts and replicas sharing the file.
func NewFileKeyManager(path string, opts KeyManagerOptions) (*KeyManager, error) {
	if err := opts.normalise(); err != nil {
		return nil, err
	}

	pemKey, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		pemKey, err = cryptox.GenerateSigningKey(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("jwtx: create key dir: %w", err)
		}
		if err := os.WriteFile(path, pemKey, 0o600); err != nil {
			return nil, fmt.Errorf("jwtx: write key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("jwtx: read key: %w", err)
	}

	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	kid, err := Thumbprint(key.Public())
	if err != nil {
		return nil, err
	}
	s, err := NewSignerFromKey(kid, key)
	if err != nil {
		return nil, err
	}

	opts.Algorithm = s.Alg()
	return newKeyManager(opts, []Signer{s})
}

func newKeyManager(opts KeyManagerOptions, signers []Signer) (*KeyManager, error) {
	keys := NewKeySet()
	for _, s := range signers {
		if err := keys.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: publish %s: %w", s.KID(), err)
		}
	}

	return &KeyManager{
		Verifier: NewVerifier(keys, VerifyOptions{
			Issuer:   opts.Issuer,
			Audience: opts.Audience,
			Leeway:   opts.Leeway,
		}),
		KeySet:    keys,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

// Thumbprint returns a short stable identifier for pub.
func Thumbprint(pub any) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return "quill-" + base64.RawURLEncoding.EncodeToString(sum[:12]), nil
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) IsReady() bool     { return km.KeySet.IsReady() }
func (km *KeyManager) NumSigners() int   { return len(km.signers) }

// Signer picks one of the active keys at random.
func (km *KeyManager) Signer() Signer {
	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))] // #nosec G404 - key choice, not a secret
	}
}
