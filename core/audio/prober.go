package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DurationProber measures media length in seconds.
type DurationProber interface {
	Duration(ctx context.Context, inputFile string) (float64, error)
}

// FFprobe runs the ffprobe binary that sits next to the configured ffmpeg.
type FFprobe struct {
	ffprobePath string
}

// NewFFprobe derives the ffprobe path from ffmpegPath ("/opt/ffmpeg/bin/ffmpeg" -> ".../ffprobe").
func NewFFprobe(ffmpegPath string) *FFprobe {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	dir, base := filepath.Split(ffmpegPath)
	return &FFprobe{ffprobePath: dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)}
}

// Path returns the resolved ffprobe binary.
func (p *FFprobe) Path() string {
	return p.ffprobePath
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration uses ffprobe to get the duration of a media file in seconds.
func (p *FFprobe) Duration(ctx context.Context, inputFile string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}
	return parseDuration(out.Bytes())
}

func parseDuration(raw []byte) (float64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w\nFFprobe Output: %s", err, raw)
	}
	if probeData.Format.Duration == "" || probeData.Format.Duration == "N/A" {
		return 0, fmt.Errorf("duration not found in ffprobe output\nFFprobe Output: %s", raw)
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q: %w", probeData.Format.Duration, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative duration %v", duration)
	}
	return duration, nil
}
