package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// videoIDRE matches watch, short-link, shorts, embed and live URL forms.
var videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/|v/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-char video id from a YouTube URL, or "".
func ExtractVideoID(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// ParseVideoRef builds a VideoRef, failing with ErrInvalidURL when the URL has no id.
func ParseVideoRef(rawURL string) (VideoRef, error) {
	u := strings.TrimSpace(rawURL)
	id := ExtractVideoID(u)
	if id == "" {
		return VideoRef{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return VideoRef{URL: u, VideoID: id}, nil
}
