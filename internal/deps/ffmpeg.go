package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// VideoCodecDefault is preferred when ffmpeg provides it.
	VideoCodecDefault = "libx264"
	// VideoCodecAlternative is used when only the BSD-licensed encoder exists.
	VideoCodecAlternative = "libopenh264"
)

// ErrNoVideoCodec means neither supported H.264 encoder is available.
var ErrNoVideoCodec = errors.New("no supported H.264 encoder available")

// ListEncoders runs `ffmpeg -encoders` and returns the encoder names.
func ListEncoders(ctx context.Context, ffmpegPath string) (map[string]struct{}, error) {
	out, err := exec.CommandContext(ctx, ffmpegPath, "-encoders").Output()
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	encoders := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders, nil
}

// DetectVideoCodec picks the H.264 encoder to hand to the daemon.
func DetectVideoCodec(ctx context.Context, ffmpegPath string) (string, error) {
	encoders, err := ListEncoders(ctx, ffmpegPath)
	if err != nil {
		return "", err
	}
	for _, codec := range []string{VideoCodecDefault, VideoCodecAlternative} {
		if _, ok := encoders[codec]; ok {
			return codec, nil
		}
	}
	return "", ErrNoVideoCodec
}

// CodecAvailable reports whether ffmpeg can encode with codec.
func CodecAvailable(ctx context.Context, ffmpegPath, codec string) bool {
	encoders, err := ListEncoders(ctx, ffmpegPath)
	if err != nil {
		return false
	}
	_, ok := encoders[codec]
	return ok
}
