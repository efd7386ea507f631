// Package vaultconfig manages the per-vault launcher configuration: the host,
// port, TLS material and daemon flags used to start one vault.
//
// The file is JSON shared with other launchers of the same vault, so unknown
// fields are tolerated and comments are stripped before decoding.
package vaultconfig
