package testsupport

import (
	"path/filepath"
	"testing"
)

// VaultFile is one file in a generated vault tree.
type VaultFile struct {
	Path string
	Size int64
}

// DefaultVaultFiles covers the top-level metadata files and each of the
// walked subdirectories.
var DefaultVaultFiles = []VaultFile{
	{Path: "main.index", Size: 64},
	{Path: "credentials.json", Size: 200},
	{Path: "media_ids.json", Size: 16},
	{Path: "tasks.json", Size: 8},
	{Path: "albums.pmv", Size: 48},
	{Path: "tag_list.pmv", Size: 48},
	{Path: "user_config.pmv", Size: 48},
	{Path: "tags/tag_0.index", Size: 32},
	{Path: "media/0/meta.pmv", Size: 96},
	{Path: "media/0/original.pma", Size: 20000},
	{Path: "media/1/meta.pmv", Size: 96},
	{Path: "thumb_album/0.pmv", Size: 512},
}

// NewVault writes files (DefaultVaultFiles when none are given) under a new
// temp directory and returns its path.
func NewVault(t testing.TB, files ...VaultFile) string {
	t.Helper()
	if len(files) == 0 {
		files = DefaultVaultFiles
	}
	root := t.TempDir()
	for _, f := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(f.Path)), f.Size)
	}
	return root
}
