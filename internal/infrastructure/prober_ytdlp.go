package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"go.uber.org/zap"
)

// YTDLPProber reads media information from `yt-dlp --dump-single-json`
type YTDLPProber struct {
	binary     string
	cookieFile string
	logger     *zap.Logger
}

// NewYTDLPProber creates a prober for the configured yt-dlp binary
func NewYTDLPProber(config domain.ExtractorConfig, log *zap.Logger) *YTDLPProber {
	if log == nil {
		log = zap.NewNop()
	}
	binary := config.YTDLPBinary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPProber{binary: binary, cookieFile: config.CookieFile, logger: log}
}

// Probe runs yt-dlp without downloading and decodes its info document
func (p *YTDLPProber) Probe(ctx context.Context, target domain.ProbeTarget) (*domain.MediaInfo, error) {
	cmd := ytdlp.New().
		SetExecutable(p.binary).
		DumpSingleJSON().
		NoPlaylist().
		NoWarnings()
	if p.cookieFile != "" && fileExists(p.cookieFile) {
		cmd.Cookies(p.cookieFile)
	}

	line := cmd.BuildCommand(ctx, target.URL).Args
	p.logger.Debug("Probing media", zap.String("command", ShellEscapeCommand(line[0], line[1:]...)))

	result, err := cmd.Run(ctx, target.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if result != nil {
			if msg := strings.TrimSpace(result.Stderr); msg != "" {
				return nil, fmt.Errorf("yt-dlp failed: %s", lastLine(msg))
			}
		}
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	var info domain.MediaInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}

	if info.ID == "" {
		info.ID = target.VideoID
	}
	if info.WebpageURL == "" {
		info.WebpageURL = target.URL
	}
	// a single selected format is reported at top level
	if len(info.Formats) == 0 && info.URL != "" {
		info.Formats = []domain.Format{{FormatID: "default", URL: info.URL, Ext: info.Ext}}
	}
	return &info, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
