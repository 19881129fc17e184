package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/xeipuuv/gojsonschema"
)

// cookieSchema validates the exported cookies.json format before anything is
// handed to the browser.
const cookieSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "value"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "value": {"type": "string"},
      "domain": {"type": "string"},
      "path": {"type": "string"},
      "expires": {"type": "number"},
      "httpOnly": {"type": "boolean"},
      "secure": {"type": "boolean"},
      "sameSite": {"type": "string", "enum": ["Strict", "Lax", "None"]}
    }
  }
}`

// Cookie mirrors one entry of an exported cookies.json file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LoadCookieFile reads and schema-validates an exported cookie jar.
func LoadCookieFile(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file %s: %w", path, err)
	}
	return ParseCookies(data)
}

// ParseCookies validates raw cookie JSON against the schema and decodes it.
func ParseCookies(data []byte) ([]Cookie, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(cookieSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate cookie file: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		sb.WriteString("cookie file failed validation:")
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			sb.WriteString(fmt.Sprintf("\n  %s: %s", field, desc.Description()))
		}
		return nil, fmt.Errorf("%s", sb.String())
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookie file: %w", err)
	}
	return cookies, nil
}

func (c Cookie) param() *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if c.Expires > 0 {
		t := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		p.Expires = &t
	}
	switch strings.ToLower(c.SameSite) {
	case "strict":
		p.SameSite = network.CookieSameSiteStrict
	case "lax":
		p.SameSite = network.CookieSameSiteLax
	case "none":
		p.SameSite = network.CookieSameSiteNone
	}
	return p
}

// SetCookies installs the cookie jar into the browser before navigation.
func (p *Page) SetCookies(ctx context.Context, cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, c.param())
	}
	err := p.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("browser: set cookies: %w", err)
	}
	return nil
}
