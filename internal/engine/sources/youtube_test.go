package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0" dur="1.5">Hello &amp;amp; welcome</text>
<text start="1.5" dur="2">to the &lt;b&gt;show&lt;/b&gt;</text>
<text start="3.5" dur="1">   </text>
<text start="4.5" dur="2">it&amp;#39;s great</text>
</transcript>`

func watchPageHTML(captionURL string) string {
	return fmt.Sprintf(`<html><head>
<meta property="og:title" content="Go Concurrency Patterns">
<meta property="og:description" content="Rob Pike on goroutines &amp; channels">
<meta property="og:image" content="https://i.ytimg.com/vi/aaaaaaaaaaa/maxresdefault.jpg">
<meta itemprop="interactionCount" content="12345">
</head><body><span itemprop="author"><link itemprop="name" content="Google for Developers"></span>
<script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
{"baseUrl":"%[1]s/api/timedtext?lang=de","languageCode":"de"},
{"baseUrl":"%[1]s/api/timedtext?lang=en&kind=asr","languageCode":"en","kind":"asr"},
{"baseUrl":"%[1]s/api/timedtext?lang=en","languageCode":"en"}
]}},"videoDetails":{"title":"Go \"Concurrency\" {Patterns}","viewCount":"12345","author":"Google"}};</script>
</body></html>`, captionURL)
}

func newTestYouTube(t *testing.T, mux *http.ServeMux) *YouTube {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	y := NewYouTube(srv.Client(), []string{"en"}, 0)
	y.baseURL = srv.URL
	y.retry = engine.RetryConfig{MaxRetries: 1, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
	return y
}

func TestTranscript_PageScrape(t *testing.T) {
	var base string
	var gotLang string
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aaaaaaaaaaa", r.URL.Query().Get("v"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(watchPageHTML(base)))
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.RawQuery
		_, _ = w.Write([]byte(timedTextXML))
	})
	y := newTestYouTube(t, mux)
	base = y.baseURL

	segs, err := y.Transcript(context.Background(), "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello & welcome", "to the show", "it's great"}, segs)
	assert.Equal(t, "lang=en", gotLang, "manual English track preferred over asr")
}

func TestTranscript_FallsBackToEngagementPanel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"}};</script></html>`))
	})
	mux.HandleFunc("/youtubei/v1/next", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.Header.Get("X-Youtube-Client-Name"))
		_, _ = w.Write([]byte(`{"engagementPanels":[{"x":{"getTranscriptEndpoint":{"params":"abc%3D%3D"}}}]}`))
	})
	mux.HandleFunc("/youtubei/v1/get_transcript", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"params":"abc=="`)
		_, _ = w.Write([]byte(`{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{"content":{"transcriptSearchPanelRenderer":{"body":{"transcriptSegmentListRenderer":{"initialSegments":[
			{"transcriptSegmentRenderer":{"snippet":{"runs":[{"text":"first "},{"text":"line"}]}}},
			{"transcriptSectionHeaderRenderer":{}},
			{"transcriptSegmentRenderer":{"snippet":{"runs":[{"text":"second line"}]}}}
		]}}}}}}}}]}`))
	})
	y := newTestYouTube(t, mux)

	segs, err := y.Transcript(context.Background(), "bbbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line"}, segs)
}

func TestTranscript_AllStrategiesFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	y := newTestYouTube(t, mux)

	_, err := y.Transcript(context.Background(), "ccccccccccc")
	require.Error(t, err)
	for _, name := range []string{"page_scrape", "engagement_panel", "android_player"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestPickBestTrack(t *testing.T) {
	tests := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   string
		ok     bool
	}{
		{"manual preferred", []captionTrack{{BaseURL: "asr", LanguageCode: "en", Kind: "asr"}, {BaseURL: "man", LanguageCode: "en"}}, []string{"en"}, "man", true},
		{"asr in preferred lang", []captionTrack{{BaseURL: "fr", LanguageCode: "fr"}, {BaseURL: "de-asr", LanguageCode: "de", Kind: "asr"}}, []string{"de"}, "de-asr", true},
		{"english fallback", []captionTrack{{BaseURL: "fr", LanguageCode: "fr"}, {BaseURL: "en-GB", LanguageCode: "en-GB"}}, []string{"ja"}, "en-GB", true},
		{"first usable", []captionTrack{{BaseURL: "x&exp=xpe", LanguageCode: "en"}, {BaseURL: "fr", LanguageCode: "fr"}}, []string{"ja"}, "fr", true},
		{"all need potoken", []captionTrack{{BaseURL: "x&exp=xpe", LanguageCode: "en"}}, []string{"en"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.langs)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.BaseURL)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1};var x`, `{"a":1}`},
		{`{"a":"}"}rest`, `{"a":"}"}`},
		{`{"a":"\"}"}rest`, `{"a":"\"}"}`},
		{`{"a":"\\"}rest`, `{"a":"\\"}`},
		{`{"a":{"b":{}}}x`, `{"a":{"b":{}}}`},
		{`{"a":1`, ``},
		{`x{}`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, string(extractJSON([]byte(tt.in))))
		})
	}
}

func TestParseTimedText(t *testing.T) {
	segs, err := parseTimedText([]byte(timedTextXML))
	require.NoError(t, err)
	assert.Len(t, segs, 3)

	_, err = parseTimedText([]byte("<transcript><text>"))
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(watchPageHTML("https://unused")))
	})
	y := newTestYouTube(t, mux)

	md, err := y.Metadata(context.Background(), "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaa", md.VideoID)
	assert.Equal(t, "Go Concurrency Patterns", md.Title)
	assert.Equal(t, "Rob Pike on goroutines & channels", md.Description)
	assert.Equal(t, "https://i.ytimg.com/vi/aaaaaaaaaaa/maxresdefault.jpg", md.ThumbnailURL)
	assert.Equal(t, int64(12345), md.Views)
	assert.Equal(t, "Google for Developers", md.Channel)

	card, err := md.Card()
	require.NoError(t, err)
	assert.Contains(t, card, "Go Concurrency Patterns")
	assert.Contains(t, card, "![thumbnail](https://i.ytimg.com/vi/aaaaaaaaaaa/maxresdefault.jpg)")
	assert.Contains(t, card, "Views: 12345")
	assert.False(t, strings.Contains(card, "<h3>"), "card is markdown")
}

func TestMetadata_PlayerResponseFallback(t *testing.T) {
	page := `<html><script>var ytInitialPlayerResponse = {"videoDetails":{"title":"Fallback","viewCount":"42","author":"Chan"}};</script></html>`
	md, err := parseMetadata([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Fallback", md.Title)
	assert.Equal(t, int64(42), md.Views)
	assert.Equal(t, "Chan", md.Channel)

	_, err = parseMetadata([]byte(`<html></html>`))
	assert.Error(t, err)
}
