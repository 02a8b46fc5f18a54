package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
)

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// ytInitialPlayerResponseMarker marks the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

func extractTranscriptToken(data []byte) (string, error) {
	m := getTranscriptRE.FindSubmatch(data)
	if len(m) < 2 {
		return "", errors.New("getTranscriptEndpoint not found in engagement panels")
	}
	// /next returns the params URL-encoded; /get_transcript wants raw base64.
	decoded, err := url.QueryUnescape(string(m[1]))
	if err != nil {
		return string(m[1]), nil
	}
	return decoded, nil
}

// transcriptSegments flattens a /get_transcript response to one line per segment.
func transcriptSegments(resp getTranscriptResp) []string {
	var out []string
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			if seg.TranscriptSegmentRenderer == nil {
				continue
			}
			var sb strings.Builder
			for _, run := range seg.TranscriptSegmentRenderer.Snippet.Runs {
				sb.WriteString(run.Text)
			}
			if line := engine.CleanCaption(sb.String()); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// viaEngagementPanel: POST /next for the transcript token, then POST /get_transcript.
func (y *YouTube) viaEngagementPanel(ctx context.Context, videoID string) ([]string, error) {
	visitorData := newVisitorData()

	nextData, err := y.postWeb(ctx, ytNextPath, map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client":  webClient(visitorData),
			"user":    map[string]any{"enableSafetyMode": false},
			"request": map[string]any{"useSsl": true},
		},
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/next: %w", err)
	}

	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return nil, err
	}

	data, err := y.postWeb(ctx, ytGetTranscriptPath, map[string]any{
		"params":  token,
		"context": map[string]any{"client": webClient(visitorData)},
	}, visitorData)
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}

	var resp getTranscriptResp
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	segs := transcriptSegments(resp)
	if len(segs) == 0 {
		return nil, errors.New("empty transcript segments")
	}
	return segs, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then anything usable.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// captionsFrom picks a track out of a player response and fetches it.
func (y *YouTube) captionsFrom(ctx context.Context, pr playerResponse) ([]string, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("captions unavailable: %s", pr.PlayabilityStatus.Reason)
		}
		return nil, errors.New("no captions in player response")
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, y.langs)
	if !ok {
		return nil, errors.New("all caption tracks require PoToken")
	}
	return y.fetchTimedText(ctx, track.BaseURL)
}

// fetchTimedText downloads a timedtext XML track: one segment per <text> line.
func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]string, error) {
	resp, err := y.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	out := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		if text := engine.CleanCaption(line.Text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// viaPlayer asks the ANDROID Innertube /player endpoint for caption tracks.
func (y *YouTube) viaPlayer(ctx context.Context, videoID string) ([]string, error) {
	body, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{Client: innertubeClient{
			ClientName:        "ANDROID",
			ClientVersion:     ytAndroidVersion,
			AndroidSdkVersion: 30,
			Hl:                "en",
			Gl:                "US",
		}},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := y.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.url(ytPlayerPath)+"?prettyPrint=false", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("android player: %w", err)
	}
	defer resp.Body.Close()

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return y.captionsFrom(ctx, pr)
}

// viaPageScrape reads ytInitialPlayerResponse from the watch page.
func (y *YouTube) viaPageScrape(ctx context.Context, videoID string) ([]string, error) {
	page, err := y.watchPage(ctx, videoID)
	if err != nil {
		return nil, err
	}
	pr, err := playerResponseFromPage(page)
	if err != nil {
		return nil, err
	}
	return y.captionsFrom(ctx, pr)
}

func playerResponseFromPage(page []byte) (playerResponse, error) {
	var pr playerResponse
	idx := bytes.Index(page, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return pr, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(page[idx+len(ytInitialPlayerResponseMarker):])
	if raw == nil {
		return pr, errors.New("unterminated ytInitialPlayerResponse JSON")
	}
	if err := json.Unmarshal(raw, &pr); err != nil {
		return pr, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr, nil
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
