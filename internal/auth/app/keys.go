package app

import (
	"log/slog"

	"github.com/samber/oops"

	"github.com/aussiebroadwan/quill/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured key mode.
//
// Key modes:
//   - "ephemeral": keys are generated on startup and held in memory only.
//     Access tokens die with the process; refresh tokens are opaque and
//     survive, so clients recover with a refresh.
//   - "file": one PEM key is loaded from SigningKeyFile, generated on first
//     start. Replicas sharing the file verify each other's tokens.
//
// Supported algorithms: RS256, ES256, EdDSA
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	}

	switch cfg.KeyMode {
	case KeyModeFile:
		keyManager, err := jwtx.NewFileKeyManager(cfg.SigningKeyFile, opts)
		if err != nil {
			return nil, oops.Code("KEYS_INIT_FAILED").With("path", cfg.SigningKeyFile).Wrapf(err, "load signing key")
		}
		logger.Info("signing key loaded",
			"algorithm", keyManager.Algorithm(),
			"path", cfg.SigningKeyFile,
			"issuer", cfg.Issuer,
		)
		return keyManager, nil

	default:
		keyManager, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, oops.Code("KEYS_INIT_FAILED").Wrapf(err, "generate signing keys")
		}
		logger.Info("generated ephemeral signing keys",
			"algorithm", keyManager.Algorithm(),
			"num_keys", keyManager.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("access tokens issued before this start are no longer valid")
		return keyManager, nil
	}
}
