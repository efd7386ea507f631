// Package vaultcrypto reads and writes the vault's encrypted blob format.
//
// A blob is laid out as a big-endian uint16 method tag, a big-endian uint32
// plaintext length, a 16-byte IV and the AES-256-CBC ciphertext of the
// PKCS#5-padded payload. MethodZlib compresses the payload before encryption.
// An empty plaintext is stored as an empty blob.
package vaultcrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Method identifies how a blob payload was prepared.
type Method uint16

const (
	// MethodZlib compresses the payload, then encrypts it.
	MethodZlib Method = 1
	// MethodFlat encrypts the payload as is.
	MethodFlat Method = 2
)

const headerSize = 2 + 4 + aes.BlockSize

var (
	// ErrInvalidData is returned for blobs too short or misaligned to decrypt.
	ErrInvalidData = errors.New("invalid encrypted data")
	// ErrInvalidMethod is returned for unknown method tags.
	ErrInvalidMethod = errors.New("invalid encryption method")
)

// Encrypt seals data with key using the given method.
func Encrypt(data []byte, method Method, key []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	payload := data
	switch method {
	case MethodFlat:
	case MethodZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		payload = buf.Bytes()
	default:
		return nil, ErrInvalidMethod
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs5Pad(payload, aes.BlockSize)
	out := make([]byte, headerSize+len(padded))
	binary.BigEndian.PutUint16(out[0:2], uint16(method))
	binary.BigEndian.PutUint32(out[2:6], uint32(len(payload)))
	copy(out[6:headerSize], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[headerSize:], padded)
	return out, nil
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(data []byte, key []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if len(data) < 2 {
		return nil, ErrInvalidData
	}

	method := Method(binary.BigEndian.Uint16(data[:2]))
	if method != MethodFlat && method != MethodZlib {
		return nil, ErrInvalidMethod
	}
	if len(data) <= headerSize {
		return nil, ErrInvalidData
	}

	length := int(binary.BigEndian.Uint32(data[2:6]))
	iv := data[6:headerSize]
	ciphertext := data[headerSize:]
	if len(ciphertext)%aes.BlockSize != 0 || length > len(ciphertext) {
		return nil, ErrInvalidData
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	plaintext = plaintext[:length]

	if method == MethodFlat {
		return plaintext, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(plaintext))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	defer r.Close()
	result, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return result, nil
}

func pkcs5Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}
