package infrastructure

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

// SelectFormat picks the format matching quality from formats.
//
// quality is one of "best" (or empty), "worst", "<N>p", "audio" or an exact
// format id. With audioOnly set the highest bitrate audio-only format is
// returned regardless of quality.
func SelectFormat(formats []domain.Format, quality string, audioOnly bool) (domain.Format, error) {
	if len(formats) == 0 {
		return domain.Format{}, domain.ErrNoFormat
	}

	quality = strings.ToLower(strings.TrimSpace(quality))
	if audioOnly || quality == "audio" || quality == "audio_only" {
		return bestAudio(formats)
	}

	for _, f := range formats {
		if quality != "" && strings.EqualFold(f.FormatID, quality) {
			return f, nil
		}
	}

	videos := make([]domain.Format, 0, len(formats))
	for _, f := range formats {
		if !f.IsAudioOnly() {
			videos = append(videos, f)
		}
	}
	if len(videos) == 0 {
		videos = append(videos, formats...)
	}

	// ascending by height, then bitrate
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].Height != videos[j].Height {
			return videos[i].Height < videos[j].Height
		}
		return videos[i].TBR < videos[j].TBR
	})

	switch {
	case quality == "" || quality == "best":
		return videos[len(videos)-1], nil
	case quality == "worst":
		return videos[0], nil
	case strings.HasSuffix(quality, "p"):
		target, err := strconv.Atoi(strings.TrimSuffix(quality, "p"))
		if err != nil || target <= 0 {
			return domain.Format{}, fmt.Errorf("%w: invalid quality %q", domain.ErrNoFormat, quality)
		}
		return closestHeight(videos, target), nil
	default:
		return domain.Format{}, fmt.Errorf("%w: %q", domain.ErrNoFormat, quality)
	}
}

// closestHeight returns the tallest format not above target, else the
// shortest one above it. videos must be sorted ascending.
func closestHeight(videos []domain.Format, target int) domain.Format {
	for i := len(videos) - 1; i >= 0; i-- {
		if videos[i].Height <= target {
			return videos[i]
		}
	}
	return videos[0]
}

func bestAudio(formats []domain.Format) (domain.Format, error) {
	var (
		best  domain.Format
		found bool
	)
	for _, f := range formats {
		if !f.IsAudioOnly() {
			continue
		}
		if !found || f.TBR > best.TBR {
			best, found = f, true
		}
	}
	if !found {
		return domain.Format{}, fmt.Errorf("%w: no audio-only format", domain.ErrNoFormat)
	}
	return best, nil
}
