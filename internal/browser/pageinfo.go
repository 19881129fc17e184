package browser

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// PageInfo carries the descriptive metadata recorded alongside a page's
// tiles.
type PageInfo struct {
	Title       string
	Description string
}

// ExtractPageInfo pulls the title and meta description out of rendered HTML.
func ExtractPageInfo(html string) PageInfo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageInfo{}
	}
	info := PageInfo{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		info.Description = strings.TrimSpace(desc)
	}
	return info
}

// Info captures the current page's descriptive metadata. Failures are not
// fatal to a capture session; callers treat an empty PageInfo as "unknown".
func (p *Page) Info(ctx context.Context) (PageInfo, error) {
	var html string
	if err := p.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html)); err != nil {
		return PageInfo{}, err
	}
	return ExtractPageInfo(html), nil
}
