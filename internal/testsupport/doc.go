// Package testsupport builds throwaway configs, vault trees and stub
// executables for package tests.
package testsupport
