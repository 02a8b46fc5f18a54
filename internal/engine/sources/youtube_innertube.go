package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Innertube API constants, wire types, and the WEB client POST helper.

const (
	ytPlayerPath        = "/youtubei/v1/player"
	ytNextPath          = "/youtubei/v1/next"
	ytGetTranscriptPath = "/youtubei/v1/get_transcript"
	ytWebVersion        = "2.20250222.10.00"
	ytAndroidVersion    = "20.10.38"
	ytAndroidUA         = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// ANDROID client (/player).

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// playerResponse is shared by /player and the watch page's ytInitialPlayerResponse.
type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails *struct {
		Title     string `json:"title"`
		ViewCount string `json:"viewCount"`
		Author    string `json:"author"`
	} `json:"videoDetails"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// timedtext XML.

type timedText struct {
	Lines []timedLine `xml:"text"`
}

type timedLine struct {
	Text string `xml:",chardata"`
}

// /get_transcript response.

type getTranscriptResp struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *struct {
											Snippet struct {
												Runs []struct {
													Text string `json:"text"`
												} `json:"runs"`
											} `json:"snippet"`
										} `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

// newVisitorData returns a random 11-char visitor id.
func newVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))] //nolint:gosec // non-cryptographic use
	}
	return string(b)
}

func webClient(visitorData string) innertubeClient {
	return innertubeClient{
		ClientName:    "WEB",
		ClientVersion: ytWebVersion,
		VisitorData:   visitorData,
		Hl:            "en",
		Gl:            "US",
	}
}

// postWeb POSTs payload to an Innertube path with WEB client headers.
func (y *YouTube) postWeb(ctx context.Context, path string, payload any, visitorData string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := y.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.url(path)+"?prettyPrint=false", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		setBrowserHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "*/*")
		req.Header.Set("X-Youtube-Client-Name", "1")
		req.Header.Set("X-Youtube-Client-Version", ytWebVersion)
		req.Header.Set("X-Goog-Visitor-Id", visitorData)
		req.Header.Set("Origin", "https://www.youtube.com")
		req.Header.Set("Referer", "https://www.youtube.com/")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("innertube %s: %w", path, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 3*1024*1024))
}

// setBrowserHeaders applies a Chrome header profile with a rotated User-Agent.
func setBrowserHeaders(req *http.Request) {
	for k, v := range stealth.ChromeHeaders() {
		req.Header.Set(k, v)
	}
	// Let the transport negotiate gzip so bodies arrive decoded.
	req.Header.Del("Accept-Encoding")
	req.Header.Set("User-Agent", stealth.RandomUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}
