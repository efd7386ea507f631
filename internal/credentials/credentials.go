package credentials

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"vaultlauncher/internal/fileutil"
	"vaultlauncher/internal/vaultcrypto"
)

// MethodAES256SHA256Salt16 is the only supported derivation method.
const MethodAES256SHA256Salt16 = "aes256/sha256/salt16"

// FileName is the credential record name inside a vault.
const FileName = "credentials.json"

const saltSize = 16

// ErrInvalidPassword reports a password that does not match the stored hash.
var ErrInvalidPassword = errors.New("invalid password")

// CredentialsError reports a structurally invalid credential record.
type CredentialsError struct {
	Field  string
	Detail string
}

func (e *CredentialsError) Error() string {
	if e.Field == "" {
		return "invalid credentials: " + e.Detail
	}
	return fmt.Sprintf("invalid credentials: %s: %s", e.Field, e.Detail)
}

// Account is a secondary vault account.
type Account struct {
	User         string `json:"user"`
	Method       string `json:"method"`
	PasswordHash string `json:"pwhash"`
	Salt         string `json:"salt"`
	EncryptedKey string `json:"enckey"`
	Write        bool   `json:"write"`
}

// Credentials is the persisted credential record.
type Credentials struct {
	User         string    `json:"user"`
	Method       string    `json:"method"`
	PasswordHash string    `json:"pwhash"`
	Salt         string    `json:"salt"`
	EncryptedKey string    `json:"enckey"`
	Fingerprint  string    `json:"fingerprint"`
	Accounts     []Account `json:"accounts"`
}

// Load reads a credential record from path.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &CredentialsError{Detail: err.Error()}
	}
	return &creds, nil
}

// Save writes the record to path atomically.
func (c *Credentials) Save(path string) error {
	if c.Accounts == nil {
		c.Accounts = []Account{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// ExportKey verifies password and returns the decrypted master key.
func (c *Credentials) ExportKey(password string) ([]byte, error) {
	if c.Method != MethodAES256SHA256Salt16 {
		return nil, &CredentialsError{Field: "method", Detail: fmt.Sprintf("unknown method %q", c.Method)}
	}
	salt, err := decodeField("salt", c.Salt)
	if err != nil {
		return nil, err
	}
	storedHash, err := decodeField("pwhash", c.PasswordHash)
	if err != nil {
		return nil, err
	}

	hash1, hash2 := passwordHashes(password, salt)
	if !bytes.Equal(hash2, storedHash) {
		return nil, ErrInvalidPassword
	}
	encKey, err := decodeField("enckey", c.EncryptedKey)
	if err != nil {
		return nil, err
	}

	key, err := vaultcrypto.Decrypt(encKey, hash1)
	if err != nil {
		return nil, &CredentialsError{Field: "enckey", Detail: err.Error()}
	}
	return key, nil
}

// RecoverKey re-encrypts key under password with a fresh salt and drops all
// secondary accounts. The caller persists the record with Save.
func (c *Credentials) RecoverKey(key []byte, password string) error {
	return c.recoverKey(rand.Reader, key, password)
}

func (c *Credentials) recoverKey(random io.Reader, key []byte, password string) error {
	if len(key) == 0 {
		return errors.New("recover key: empty key")
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(random, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	hash1, hash2 := passwordHashes(password, salt)
	encKey, err := vaultcrypto.Encrypt(key, vaultcrypto.MethodFlat, hash1)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}

	c.Method = MethodAES256SHA256Salt16
	c.Salt = base64.StdEncoding.EncodeToString(salt)
	c.PasswordHash = base64.StdEncoding.EncodeToString(hash2)
	c.EncryptedKey = base64.StdEncoding.EncodeToString(encKey)
	c.Accounts = []Account{}
	return nil
}

func passwordHashes(password string, salt []byte) ([]byte, []byte) {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	hash1 := h.Sum(nil)
	sum2 := sha256.Sum256(hash1)
	return hash1, sum2[:]
}

func decodeField(name, value string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, &CredentialsError{Field: name, Detail: err.Error()}
	}
	return out, nil
}
