package backup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// check keeps the entries whose backup copy is missing or older than the
// source. Entries missing from the source are skipped.
func (r *run) check(entries []Entry) ([]CheckedEntry, error) {
	var checked []CheckedEntry
	for _, entry := range entries {
		if err := r.tick(); err != nil {
			return nil, err
		}

		src := filepath.Join(r.vaultPath, entry.Path)
		srcInfo, err := os.Stat(src)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.debugIO(src, err)
			}
			r.progress.FilesDone++
			continue
		}

		dst := filepath.Join(r.backupPath, entry.Path)
		needsCopy := true
		dstInfo, err := os.Stat(dst)
		switch {
		case err == nil:
			needsCopy = dstInfo.ModTime().Before(srcInfo.ModTime())
		case !errors.Is(err, fs.ErrNotExist):
			r.debugIO(dst, err)
			return nil, &Error{
				Kind:   KindUnknown,
				Detail: "Error (file: " + dst + "): " + err.Error(),
				Err:    err,
			}
		}

		r.progress.FilesDone++
		if !needsCopy {
			continue
		}
		r.progress.BytesDone += srcInfo.Size()
		checked = append(checked, CheckedEntry{
			Entry:   entry,
			Size:    srcInfo.Size(),
			ModTime: srcInfo.ModTime(),
		})
	}
	return checked, nil
}
