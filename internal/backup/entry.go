package backup

import "time"

// Entry is a vault-relative file scheduled for backup.
type Entry struct {
	Path string
}

// CheckedEntry is an Entry that needs copying, with the source size and
// modification time observed while checking.
type CheckedEntry struct {
	Entry
	Size    int64
	ModTime time.Time
}

// SeedFiles are the vault root files every backup includes.
var SeedFiles = []string{
	"main.index",
	"credentials.json",
	"media_ids.json",
	"tasks.json",
	"albums.pmv",
	"tag_list.pmv",
	"user_config.pmv",
}

// TreeDirs are the vault directories backed up recursively.
var TreeDirs = []string{"tags", "media", "thumb_album"}
