package worker

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"

	"vaultlauncher/internal/credentials"
	"vaultlauncher/internal/logging"
)

func (w *Worker) credentialsPath() string {
	return filepath.Join(w.state.VaultPath, credentials.FileName)
}

func (w *Worker) publishKeyError(op KeyOp, kind KeyErrorKind, err error) {
	result := KeyResult{Op: op, Status: TaskError, Kind: kind}
	if err != nil {
		result.Detail = err.Error()
	}
	if kind == KeyErrorUnknown {
		logging.ErrorWithContext(w.logger, "key operation failed", "key_"+string(op)+"_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check "+credentials.FileName+" in the vault folder"),
		)
	} else {
		w.logger.Info("key operation rejected",
			logging.String(logging.FieldEventType, "key_"+string(op)+"_rejected"),
			logging.String("reason", string(kind)),
		)
	}
	w.sink.Publish(result)
}

// handleExportKey decrypts the vault key with the account password and
// publishes it as upper-case hex.
func (w *Worker) handleExportKey(m ExportKey) {
	if !w.requireVault("export_key") {
		return
	}
	creds, err := credentials.Load(w.credentialsPath())
	if err != nil {
		w.publishKeyError(KeyOpExport, KeyErrorUnknown, err)
		return
	}
	if creds.User != m.Username {
		w.publishKeyError(KeyOpExport, KeyErrorInvalidUser, nil)
		return
	}
	key, err := creds.ExportKey(m.Password)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidPassword) {
			w.publishKeyError(KeyOpExport, KeyErrorInvalidPassword, nil)
			return
		}
		w.publishKeyError(KeyOpExport, KeyErrorUnknown, err)
		return
	}
	w.logger.Info("vault key exported",
		logging.String(logging.FieldEventType, "key_exported"),
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
	)
	w.sink.Publish(KeyResult{Op: KeyOpExport, Status: TaskSuccess, Key: strings.ToUpper(hex.EncodeToString(key))})
}

// handleRecoverKey replaces the credentials with a single account protecting
// key. The daemon is stopped while the file changes and started again
// afterwards, whatever the outcome.
func (w *Worker) handleRecoverKey(m RecoverKey) {
	if !w.requireVault("recover_key") {
		return
	}
	w.stopDaemon()
	defer w.startDaemon(false)

	switch credentials.TestKey(w.state.VaultPath, m.Key) {
	case credentials.KeyInvalid:
		w.publishKeyError(KeyOpRecover, KeyErrorInvalidKey, nil)
		return
	case credentials.KeyNoEncryptedFiles:
		w.publishKeyError(KeyOpRecover, KeyErrorNoEncryptedFiles, nil)
		return
	}

	path := w.credentialsPath()
	creds, err := credentials.Load(path)
	if err != nil {
		w.publishKeyError(KeyOpRecover, KeyErrorUnknown, err)
		return
	}
	creds.User = m.Username
	if err := creds.RecoverKey(m.Key, m.Password); err != nil {
		w.publishKeyError(KeyOpRecover, KeyErrorUnknown, err)
		return
	}
	if err := creds.Save(path); err != nil {
		w.publishKeyError(KeyOpRecover, KeyErrorUnknown, err)
		return
	}
	w.logger.Info("vault key recovered",
		logging.String(logging.FieldEventType, "key_recovered"),
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
		logging.String("user", m.Username),
	)
	w.sink.Publish(KeyResult{Op: KeyOpRecover, Status: TaskSuccess})
}
