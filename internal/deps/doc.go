// Package deps locates the external programs the launcher depends on: the
// vault daemon, its web frontend and the FFmpeg tools handed to it.
package deps
