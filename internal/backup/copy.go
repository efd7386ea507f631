package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

const (
	copyBufferSize = 8 * 1024
	// TempDirName is the staging directory inside the backup root.
	TempDirName = "temp"
)

func (r *run) copyAll(entries []CheckedEntry) error {
	tempDir := filepath.Join(r.backupPath, TempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		r.debugIO(tempDir, err)
	}
	buf := make([]byte, copyBufferSize)
	for i, entry := range entries {
		if err := r.tick(); err != nil {
			return err
		}
		tempPath := filepath.Join(tempDir, fmt.Sprintf("backup_tmp_%d", i+1))
		if err := r.copyEntry(entry, tempPath, buf); err != nil {
			_ = os.Remove(tempPath)
			return err
		}
		r.progress.FilesDone++
	}
	return nil
}

func (r *run) copyEntry(entry CheckedEntry, tempPath string, buf []byte) error {
	src := filepath.Join(r.vaultPath, entry.Path)
	dst := filepath.Join(r.backupPath, entry.Path)
	r.progress.startFile(entry.Path, entry.Size)

	tmp, err := os.Create(tempPath)
	if err != nil {
		r.debugIO(tempPath, err)
		return ioError("creating", tempPath, err)
	}
	in, err := os.Open(src)
	if err != nil {
		_ = tmp.Close()
		r.debugIO(src, err)
		return ioError("opening", src, err)
	}

	copyErr := r.stream(tmp, in, buf, src, tempPath)
	_ = in.Close()
	if closeErr := tmp.Close(); copyErr == nil && closeErr != nil {
		copyErr = ioError("writing", tempPath, closeErr)
	}
	if copyErr != nil {
		return copyErr
	}

	if err := os.Chtimes(tempPath, entry.ModTime, entry.ModTime); err != nil {
		r.debugIO(tempPath, err)
		return ioError("setting modified date of", tempPath, err)
	}

	// The source may have changed size since it was checked.
	r.progress.BytesTotal += r.progress.FileBytesDone - entry.Size
	r.progress.endFile()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		r.debugIO(filepath.Dir(dst), err)
	}
	if err := os.Rename(tempPath, dst); err != nil {
		r.debugIO(dst, err)
		return ioError("moving", dst, err)
	}
	return nil
}

func (r *run) stream(dst io.Writer, src io.Reader, buf []byte, srcPath, dstPath string) error {
	for {
		if err := r.tick(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				r.debugIO(dstPath, err)
				return ioError("writing", dstPath, err)
			}
			r.progress.FileBytesDone += int64(n)
			r.progress.BytesDone += int64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			r.debugIO(srcPath, readErr)
			return ioError("reading", srcPath, readErr)
		}
	}
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
