package backup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// find lists the seed files followed by every regular file in TreeDirs.
// Seed files are listed whether or not they exist.
func (r *run) find() ([]Entry, error) {
	entries := make([]Entry, 0, len(SeedFiles))
	for _, name := range SeedFiles {
		entries = append(entries, Entry{Path: name})
	}
	r.progress.FilesDone = int64(len(entries))

	for _, dir := range TreeDirs {
		var err error
		entries, err = r.findTree(entries, dir)
		if err != nil {
			return nil, err
		}
	}
	r.progress.FilesTotal = r.progress.FilesDone
	return entries, nil
}

func (r *run) findTree(entries []Entry, rel string) ([]Entry, error) {
	if err := r.tick(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(filepath.Join(r.vaultPath, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, &Error{Kind: KindUnknown, Detail: err.Error(), Err: err}
	}
	for _, de := range dirEntries {
		child := filepath.Join(rel, de.Name())
		switch {
		case de.Type().IsRegular():
			entries = append(entries, Entry{Path: child})
			r.progress.FilesDone++
		case de.IsDir():
			entries, err = r.findTree(entries, child)
			if err != nil {
				return nil, err
			}
		}
	}
	return entries, nil
}
