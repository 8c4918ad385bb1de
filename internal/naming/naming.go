// Package naming renders output file names from %(var)s templates.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/yourusername/vidgrab-go/internal/domain"
)

// MaxFilenameLength is the longest file name Sanitize produces, in characters
const MaxFilenameLength = 200

// DefaultTemplate is used when no template is configured
const DefaultTemplate = "%(title)s.%(ext)s"

// Templates are the named built-in templates
var Templates = map[string]string{
	"simple":      "%(title)s.%(ext)s",
	"with_author": "%(author)s - %(title)s.%(ext)s",
	"with_date":   "%(upload_date)s - %(title)s.%(ext)s",
	"organized":   "%(author)s/%(upload_date)s - %(title)s.%(ext)s",
	"quality":     "%(title)s [%(quality)s].%(ext)s",
	"full":        "%(author)s - %(title)s [%(quality)s] (%(upload_date)s).%(ext)s",
}

// Variables documents every variable a template may reference
var Variables = map[string]string{
	"title":        "Video title",
	"author":       "Video author/uploader",
	"upload_date":  "Upload date (YYYY-MM-DD)",
	"upload_year":  "Upload year (YYYY)",
	"upload_month": "Upload month (MM)",
	"upload_day":   "Upload day (DD)",
	"quality":      "Video quality (e.g. 1080p)",
	"format":       "Video format (e.g. mp4)",
	"ext":          "File extension",
	"duration":     "Video duration (HH:MM:SS)",
	"duration_sec": "Video duration in seconds",
	"view_count":   "View count",
	"like_count":   "Like count",
	"platform":     "Platform name",
	"video_id":     "Video ID",
	"channel_id":   "Channel ID",
	"index":        "Index number for batch downloads",
	"timestamp":    "Current timestamp (YYYY-MM-DD_HH-MM-SS)",
}

var (
	placeholder     = regexp.MustCompile(`%\((\w+)\)s`)
	invalidName     = regexp.MustCompile(`[<>:"/\\|?*]`)
	invalidVariable = regexp.MustCompile(`[<>"/\\|?*]`)
)

// Input is what a file name is built from
type Input struct {
	Metadata *domain.VideoMetadata
	Quality  string
	Ext      string
	Index    int // 0 renders as 001
	Now      time.Time
}

// Resolve returns the template for a built-in name, or s itself when it is
// already a template. An empty string resolves to DefaultTemplate.
func Resolve(s string) string {
	if s == "" {
		return DefaultTemplate
	}
	if t, ok := Templates[s]; ok {
		return t
	}
	return s
}

// Names returns the built-in template names in sorted order
func Names() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vars computes the template variables for in. Every value except duration
// is made safe for use inside a file name.
func Vars(in Input) map[string]string {
	meta := in.Metadata
	if meta == nil {
		meta = &domain.VideoMetadata{}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	vars := map[string]string{
		"title":      orDefault(strings.TrimSpace(meta.Title), "Untitled"),
		"author":     orDefault(strings.TrimSpace(meta.Author), "Unknown"),
		"platform":   strings.ToLower(orDefault(string(meta.Platform), "unknown")),
		"video_id":   meta.VideoID,
		"channel_id": meta.ChannelID,
		"view_count": strconv.FormatInt(meta.ViewCount, 10),
		"like_count": strconv.FormatInt(meta.LikeCount, 10),
		"quality":    orDefault(in.Quality, "unknown"),
		"format":     orDefault(in.Ext, "mp4"),
		"ext":        orDefault(in.Ext, "mp4"),
		"index":      "001",
		"timestamp":  now.Format("2006-01-02_15-04-05"),
	}

	if in.Index > 0 {
		vars["index"] = fmt.Sprintf("%03d", in.Index)
	}

	if meta.UploadDate.IsZero() {
		for _, k := range []string{"upload_date", "upload_year", "upload_month", "upload_day"} {
			vars[k] = "unknown"
		}
	} else {
		vars["upload_date"] = meta.UploadDate.Format("2006-01-02")
		vars["upload_year"] = meta.UploadDate.Format("2006")
		vars["upload_month"] = meta.UploadDate.Format("01")
		vars["upload_day"] = meta.UploadDate.Format("02")
	}

	if d := meta.Duration; d > 0 {
		vars["duration"] = fmt.Sprintf("%02d:%02d:%02d", d/3600, (d%3600)/60, d%60)
		vars["duration_sec"] = strconv.Itoa(d)
	} else {
		vars["duration"] = "00:00:00"
		vars["duration_sec"] = "0"
	}

	for k, v := range vars {
		if k == "duration" {
			continue
		}
		v = strings.Trim(invalidVariable.ReplaceAllString(v, "_"), " .")
		if v == "" {
			v = "unknown"
		}
		vars[k] = v
	}
	return vars
}

// Render substitutes vars into template. "%%" yields a literal percent sign.
// Referencing a variable missing from vars is an error.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return strings.ReplaceAll(v, "%", "%%")
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unknown template variable %q", missing[0])
	}
	return strings.ReplaceAll(out, "%%", "%"), nil
}

// Format renders template for in and sanitises the result. A template that
// cannot be rendered falls back to "<title>.<ext>".
func Format(template string, in Input) string {
	vars := Vars(in)
	name, err := Render(Resolve(template), vars)
	if err != nil {
		name = vars["title"] + "." + vars["ext"]
	}
	return Sanitize(name)
}

// Validate reports whether template renders to a usable file name
func Validate(template string) error {
	vars := make(map[string]string, len(Variables))
	for k := range Variables {
		vars[k] = "test_" + k
	}
	vars["ext"] = "mp4"

	name, err := Render(template, vars)
	if err != nil {
		return err
	}
	if s := Sanitize(name); s == "" || s == "untitled" {
		return fmt.Errorf("template %q produces an empty file name", template)
	}
	return nil
}

// SampleMetadata is the record Preview renders templates with
func SampleMetadata() *domain.VideoMetadata {
	return &domain.VideoMetadata{
		Title:      "Sample Video Title",
		Author:     "Sample Author",
		UploadDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Duration:   3661,
		ViewCount:  12345,
		LikeCount:  678,
		Platform:   domain.PlatformYouTube,
		VideoID:    "abc123",
		ChannelID:  "channel123",
	}
}

// Preview renders template against SampleMetadata
func Preview(template string) string {
	return Format(template, Input{
		Metadata: SampleMetadata(),
		Quality:  "1080p",
		Ext:      "mp4",
		Index:    1,
	})
}

// Sanitize makes name safe to use as a single path element on every OS
func Sanitize(name string) string {
	name = invalidName.ReplaceAllString(name, "_")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" {
		return "untitled"
	}

	if runes := []rune(name); len(runes) > MaxFilenameLength {
		ext := filepath.Ext(name)
		extLen := len([]rune(ext))
		if extLen >= MaxFilenameLength {
			return string(runes[:MaxFilenameLength])
		}
		base := []rune(strings.TrimSuffix(name, ext))
		name = string(base[:MaxFilenameLength-extLen]) + ext
	}
	return name
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
