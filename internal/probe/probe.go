package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/arstudio/api/internal/exec"
)

// VideoProber reads stream metadata with ffprobe
type VideoProber struct {
	ffprobePath string
	runner      exec.Runner
}

type VideoInfo struct {
	Duration  float64
	Width     int
	Height    int
	FPS       float64
	Bitrate   int // kbps
	CodecName string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width,omitempty"`
		Height     int    `json:"height,omitempty"`
		RFrameRate string `json:"r_frame_rate,omitempty"`
		Duration   string `json:"duration,omitempty"`
		Tags       struct {
			Rotate string `json:"rotate,omitempty"`
		} `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func NewVideoProber(ffprobePath string, runner exec.Runner) *VideoProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &VideoProber{ffprobePath: ffprobePath, runner: runner}
}

// ProbeVideo inspects a local path or URL. Width and height are swapped
// for streams tagged with a quarter-turn rotation.
func (p *VideoProber) ProbeVideo(ctx context.Context, source string) (*VideoInfo, error) {
	if strings.HasPrefix(source, "-") {
		return nil, fmt.Errorf("invalid probe source %q", source)
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		source,
	}

	output, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobe(output)
}

func parseFFprobe(output []byte) (*VideoInfo, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.Atoi(data.Format.BitRate); err == nil {
		info.Bitrate = b / 1000
	}

	for _, stream := range data.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width, info.Height = stream.Width, stream.Height
		info.CodecName = stream.CodecName
		if rot := strings.TrimPrefix(stream.Tags.Rotate, "-"); rot == "90" || rot == "270" {
			info.Width, info.Height = info.Height, info.Width
		}
		if parts := strings.Split(stream.RFrameRate, "/"); len(parts) == 2 {
			num, _ := strconv.ParseFloat(parts[0], 64)
			den, _ := strconv.ParseFloat(parts[1], 64)
			if den > 0 {
				info.FPS = num / den
			}
		}
		if info.Duration == 0 {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = d
			}
		}
		break
	}

	if info.Width == 0 || info.Height == 0 {
		return info, fmt.Errorf("no video stream found")
	}
	return info, nil
}
