package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vault-backup/internal/vb"
)

// LedgerObject is the name of the ledger copy in the offsite store.
const LedgerObject = "runs.db"

// MirrorLedger uploads a consistent copy of the ledger to the offsite store,
// tagged with version. The copy is encrypted when an encryptor is configured.
// It is a no-op when no offsite store is configured.
func (a *VBApp) MirrorLedger(version int64) error {
	if a.offsite == nil || a.ledger == nil {
		return nil
	}
	if a.encryptor != nil && !a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not set up, run 'vb ledger keys' first")
	}

	dir, err := os.MkdirTemp("", "vb-ledger-*")
	if err != nil {
		return fmt.Errorf("creating temp dir for ledger copy: %w", err)
	}
	defer os.RemoveAll(dir)

	plain := filepath.Join(dir, LedgerObject)
	if err := a.ledger.BackupTo(plain); err != nil {
		return err
	}

	upload := plain
	if a.encryptor != nil {
		upload = plain + ".age"
		if err := encryptFile(a.encryptor, plain, upload); err != nil {
			return err
		}
	}

	f, err := os.Open(upload)
	if err != nil {
		return fmt.Errorf("opening ledger copy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger copy: %w", err)
	}
	if err := a.offsite.Put(LedgerObject, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading ledger: %w", err)
	}
	a.logger.Info("ledger mirrored", "version", version, "bytes", info.Size(), "encrypted", a.encryptor != nil)
	return nil
}

func encryptFile(enc vb.Encryptor, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening ledger copy: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted copy: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting ledger: %w", err)
	}
	return out.Close()
}

// PullLedger downloads the offsite ledger copy to out and returns its version.
// passphrase unlocks the private key when the copy is encrypted.
// out must not exist yet.
func (a *VBApp) PullLedger(out string, passphrase string) (int64, error) {
	if a.offsite == nil {
		return 0, fmt.Errorf("no offsite store configured")
	}

	version, err := a.offsite.Version(LedgerObject)
	if err != nil {
		return 0, fmt.Errorf("reading ledger version: %w", err)
	}

	var dc vb.DecryptionContext
	if a.encryptor != nil {
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return 0, fmt.Errorf("unlocking private key: %w", err)
		}
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", out, err)
	}

	if err := a.download(f, dc); err != nil {
		f.Close()
		os.Remove(out)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return 0, fmt.Errorf("closing %s: %w", out, err)
	}
	return version, nil
}

func (a *VBApp) download(w io.Writer, dc vb.DecryptionContext) error {
	if dc == nil {
		if err := a.offsite.Get(LedgerObject, w); err != nil {
			return fmt.Errorf("downloading ledger: %w", err)
		}
		return nil
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		pw.CloseWithError(a.offsite.Get(LedgerObject, pw))
	}()
	if err := dc.Decrypt(pr, w); err != nil {
		return fmt.Errorf("decrypting ledger: %w", err)
	}
	return nil
}

// SetupKeys generates the ledger encryption key pair.
func (a *VBApp) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled")
	}
	return a.encryptor.Setup(passphrase)
}

// PublicKey returns the recipient string of the ledger key, when the
// encryptor exposes one.
func (a *VBApp) PublicKey() (string, error) {
	pk, ok := a.encryptor.(interface{ PublicKey() (string, error) })
	if !ok {
		return "", fmt.Errorf("encryptor has no public key")
	}
	return pk.PublicKey()
}

// checkLedgerVersion warns when the offsite copy is newer than the local
// ledger, which happens after the local data directory was lost.
func (a *VBApp) checkLedgerVersion() {
	if a.offsite == nil || a.ledger == nil {
		return
	}
	remote, err := a.offsite.Version(LedgerObject)
	if err != nil {
		a.logger.Warn("checking offsite ledger version failed", "error", err)
		return
	}
	var local int64
	last, err := a.ledger.LastRun()
	switch {
	case err == nil:
		local = last.ID
	case !errors.Is(err, vb.ErrNotFound):
		a.logger.Warn("reading local ledger failed", "error", err)
		return
	}
	if remote > local {
		a.logger.Warn("local ledger is behind offsite copy, run 'vb ledger pull' to recover it",
			"local", local, "remote", remote)
	}
}
