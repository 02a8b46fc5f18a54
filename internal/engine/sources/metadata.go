package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// VideoMetadata is the display card for an ingested video.
type VideoMetadata struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Channel      string `json:"channel,omitempty"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Views        int64  `json:"views"`
}

// Metadata reads the watch page meta tags for videoID.
func (y *YouTube) Metadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	page, err := y.watchPage(ctx, videoID)
	if err != nil {
		return VideoMetadata{VideoID: videoID}, err
	}
	md, err := parseMetadata(page)
	md.VideoID = videoID
	if err != nil {
		return md, err
	}
	if md.ThumbnailURL == "" {
		md.ThumbnailURL = "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
	}
	return md, nil
}

// watchPage downloads the HTML watch page.
func (y *YouTube) watchPage(ctx context.Context, videoID string) ([]byte, error) {
	resp, err := y.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.url("/watch?v="+videoID), nil)
		if err != nil {
			return nil, err
		}
		setBrowserHeaders(req)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}
	return body, nil
}

// parseMetadata extracts Open Graph and schema.org meta tags, falling back
// to videoDetails in ytInitialPlayerResponse.
func parseMetadata(page []byte) (VideoMetadata, error) {
	var md VideoMetadata
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return md, fmt.Errorf("parse watch page: %w", err)
	}
	for _, n := range findElements(doc, "meta") {
		key := getAttr(n, "property")
		if key == "" {
			key = getAttr(n, "itemprop")
		}
		if key == "" {
			key = getAttr(n, "name")
		}
		val := strings.TrimSpace(getAttr(n, "content"))
		switch key {
		case "og:title":
			md.Title = val
		case "og:description":
			md.Description = val
		case "og:image":
			md.ThumbnailURL = val
		case "interactionCount":
			md.Views, _ = strconv.ParseInt(val, 10, 64)
		}
	}
	for _, n := range findElements(doc, "link") {
		if getAttr(n, "itemprop") == "name" && md.Channel == "" {
			md.Channel = getAttr(n, "content")
		}
	}

	if md.Title == "" || md.Views == 0 {
		if pr, err := playerResponseFromPage(page); err == nil && pr.VideoDetails != nil {
			if md.Title == "" {
				md.Title = pr.VideoDetails.Title
			}
			if md.Views == 0 {
				md.Views, _ = strconv.ParseInt(pr.VideoDetails.ViewCount, 10, 64)
			}
			if md.Channel == "" {
				md.Channel = pr.VideoDetails.Author
			}
		}
	}
	if md.Title == "" {
		return md, errors.New("no title in watch page")
	}
	return md, nil
}

const cardDescriptionChars = 400

var cardTmpl = template.Must(template.New("card").Parse(
	`<h3>{{.Title}}</h3>` +
		`{{if .Channel}}<p><em>{{.Channel}}</em></p>{{end}}` +
		`{{if .ThumbnailURL}}<p><img src="{{.ThumbnailURL}}" alt="thumbnail"></p>{{end}}` +
		`<p>Views: {{.Views}}</p>` +
		`{{if .Description}}<p>{{.Description}}</p>{{end}}`))

// Card renders the metadata as Markdown.
func (m VideoMetadata) Card() (string, error) {
	m.Description = engine.TruncateAtWord(m.Description, cardDescriptionChars)
	var buf bytes.Buffer
	if err := cardTmpl.Execute(&buf, m); err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("card: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElements(n *html.Node, tag string) []*html.Node {
	var results []*html.Node
	if n.Type == html.ElementNode && n.Data == tag {
		results = append(results, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		results = append(results, findElements(c, tag)...)
	}
	return results
}
