package credentials

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vaultlauncher/internal/vaultcrypto"
)

// KeyTestResult is the outcome of checking a key against vault data.
type KeyTestResult int

const (
	// KeyValid means every sampled file decrypted to JSON.
	KeyValid KeyTestResult = iota
	// KeyInvalid means at least one sampled file failed.
	KeyInvalid
	// KeyNoEncryptedFiles means the vault holds no *.pmv files to sample.
	KeyNoEncryptedFiles
)

func (r KeyTestResult) String() string {
	switch r {
	case KeyValid:
		return "valid"
	case KeyInvalid:
		return "invalid"
	case KeyNoEncryptedFiles:
		return "no_encrypted_files"
	default:
		return "unknown"
	}
}

const keyTestSampleSize = 3

var errSampleFull = errors.New("sample full")

// TestKey decrypts up to three *.pmv files found under vaultPath with key
// and requires each to hold valid JSON.
func TestKey(vaultPath string, key []byte) KeyTestResult {
	samples := findEncryptedFiles(vaultPath, keyTestSampleSize)
	if len(samples) == 0 {
		return KeyNoEncryptedFiles
	}
	for _, path := range samples {
		data, err := os.ReadFile(path)
		if err != nil {
			return KeyInvalid
		}
		plain, err := vaultcrypto.Decrypt(data, key)
		if err != nil || !json.Valid(plain) {
			return KeyInvalid
		}
	}
	return KeyValid
}

func findEncryptedFiles(root string, limit int) []string {
	var found []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), ".pmv") {
			found = append(found, path)
			if len(found) >= limit {
				return errSampleFull
			}
		}
		return nil
	})
	return found
}
