package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"vault-backup/internal/vb"
)

var testMagic = []byte("vb-test-seal\n")

// TestEncryptor frames data with a marker instead of encrypting it, so tests
// can tell sealed copies from plaintext without paying for scrypt.
// Unlock only accepts the passphrase given to Setup.
type TestEncryptor struct {
	passphrase string
}

var _ vb.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a TestEncryptor that has not been set up.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if e.passphrase != "" {
		return ErrKeysExist
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (vb.DecryptionContext, error) {
	if e.passphrase == "" || passphrase != e.passphrase {
		return nil, fmt.Errorf("decrypting private key: incorrect passphrase")
	}
	return testDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.passphrase != ""
}

type testDecryptionContext struct{}

func (testDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(testMagic))
	if err != nil || !bytes.Equal(head, testMagic) {
		return fmt.Errorf("input is not sealed by the test encryptor")
	}
	br.Discard(len(testMagic))
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
