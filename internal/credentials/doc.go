// Package credentials reads and rewrites the vault credential record and
// implements the key export, key recovery and key test flows.
//
// The record stores a double SHA-256 hash of the password plus salt and the
// vault master key encrypted under the single hash. Only the
// "aes256/sha256/salt16" method is defined.
package credentials
