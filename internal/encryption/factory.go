package encryption

import (
	"fmt"

	"vault-backup/internal/config"
	"vault-backup/internal/vb"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" returns nil: ledger copies are mirrored as plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (vb.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
