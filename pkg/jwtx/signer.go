package jwtx

import (
	"crypto"
	"fmt"

	"github.com/aussiebroadwan/quill/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer is anything that can sign access tokens and publish the matching
// public key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	alg    string
	method jwt.SigningMethod
	key    crypto.Signer
}

// NewSigner loads a PEM private key. The algorithm follows the key type:
// Ed25519 signs EdDSA, P-256 signs ES256 and RSA signs RS256.
func NewSigner(kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	return NewSignerFromKey(kid, key)
}

// NewSignerFromKey wraps an already parsed private key.
func NewSignerFromKey(kid string, key crypto.Signer) (Signer, error) {
	if kid == "" {
		return nil, fmt.Errorf("jwtx: signer requires a kid")
	}

	alg, err := cryptox.AlgorithmFor(key)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("jwtx: no signing method for %s", alg)
	}

	return &keySigner{kid: kid, alg: alg, method: method, key: key}, nil
}

func (s *keySigner) Alg() string { return s.alg }
func (s *keySigner) KID() string { return s.kid }

func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid

	return t.SignedString(s.key)
}

func (s *keySigner) PublicJWK() JWK {
	jwk, _ := PublicJWK(s.kid, s.alg, s.key.Public())
	return jwk
}
