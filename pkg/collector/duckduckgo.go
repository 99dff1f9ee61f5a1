package collector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const (
	DefaultDuckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

	ddgPageSize  = 30
	ddgPageDelay = 1 * time.Second
)

// DuckDuckGo scrapes the HTML results page of DuckDuckGo.
type DuckDuckGo struct {
	client   *whttp.Client
	endpoint string
	// Delay is waited between result pages.
	Delay time.Duration
}

// NewDuckDuckGo searches endpoint, DefaultDuckDuckGoEndpoint when empty.
func NewDuckDuckGo(client *whttp.Client, endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = DefaultDuckDuckGoEndpoint
	}
	return &DuckDuckGo{client: client, endpoint: endpoint, Delay: ddgPageDelay}
}

// Search pages through the results until max hits are read or a page adds nothing new.
func (d *DuckDuckGo) Search(ctx context.Context, query string, max int) ([]Record, error) {
	var out []Record
	seen := make(map[string]struct{})
	for offset := 0; len(out) < max; offset += ddgPageSize {
		if offset > 0 {
			if err := politeness.Sleep(ctx, d.Delay); err != nil {
				return out, err
			}
		}
		page, err := d.page(ctx, query, offset)
		if err != nil {
			if len(out) > 0 {
				utils.Log.Debugf("[collect] stopping %q at offset %d: %v", query, offset, err)
				break
			}
			return nil, err
		}
		added := 0
		for _, r := range page {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
			added++
			if len(out) >= max {
				break
			}
		}
		if added == 0 {
			break
		}
	}
	return out, nil
}

func (d *DuckDuckGo) page(ctx context.Context, query string, offset int) ([]Record, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("kl", "jp-jp")
	if offset > 0 {
		q.Set("s", strconv.Itoa(offset))
		q.Set("dc", strconv.Itoa(offset+1))
	}
	res, err := d.client.Get(ctx, d.endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("search returned HTTP %d", res.StatusCode)
	}
	doc, err := res.Document()
	if err != nil {
		return nil, err
	}
	return parseResults(doc), nil
}

// parseResults reads the organic results of a DuckDuckGo HTML page. Ads are skipped.
func parseResults(doc *goquery.Document) []Record {
	var out []Record
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		target := resolveRedirect(href)
		if target == "" {
			return
		}
		out = append(out, Record{
			Title:   whttp.Text(a),
			URL:     target,
			Snippet: whttp.Text(s.Find(".result__snippet").First()),
		})
	})
	return out
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= links and keeps only http(s) targets.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
