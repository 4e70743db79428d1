// Package compose builds channel-agnostic notification payloads from
// category templates and substitution data. Channel-specific encoding
// (platform action arrays, rich flags) is layered on by the dispatch side.
package compose

import (
	"fmt"
	"regexp"

	"github.com/table-talk25/tabletalk-notify/internal/category"
)

var (
	placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)
	pathParamRe   = regexp.MustCompile(`:(\w+)`)
)

// Payload is a composed notification ready for any delivery channel.
type Payload struct {
	Category category.Category `json:"category"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Icon     string            `json:"icon"`
	Color    string            `json:"color"`
	Priority string            `json:"priority"`
	DeepLink string            `json:"deepLink"`
	Actions  []category.Action `json:"actions,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Composer fills category templates. The deep-link base URL comes from
// configuration and is prefixed onto every composed link.
type Composer struct {
	baseURL string
}

// New returns a Composer that prefixes deep links with baseURL.
func New(baseURL string) *Composer {
	return &Composer{baseURL: baseURL}
}

// Compose renders the category's template with the given data. Unknown
// categories error; missing substitution keys do not: the literal token is
// left in place so partial personalization never blocks delivery.
func (c *Composer) Compose(cat category.Category, data map[string]string) (*Payload, error) {
	tpl, ok := cat.Template()
	if !ok {
		return nil, fmt.Errorf("compose %s: %w", cat, category.ErrUnsupported)
	}

	return &Payload{
		Category: cat,
		Title:    substitute(tpl.Title, data),
		Body:     substitute(tpl.Body, data),
		Icon:     tpl.Icon,
		Color:    tpl.Color,
		Priority: tpl.Priority,
		DeepLink: c.baseURL + fillPath(tpl.DeepLink, data),
		Actions:  tpl.Actions,
		Data:     data,
	}, nil
}

// substitute replaces every {{key}} with data[key] when present; unmatched
// placeholders stay verbatim.
func substitute(pattern string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		key := placeholderRe.FindStringSubmatch(tok)[1]
		if v, ok := data[key]; ok {
			return v
		}
		return tok
	})
}

// fillPath replaces every :param path segment with data[param] when present;
// a missing key leaves the literal :param token (the caller supplies the
// required keys).
func fillPath(pattern string, data map[string]string) string {
	return pathParamRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		key := pathParamRe.FindStringSubmatch(tok)[1]
		if v, ok := data[key]; ok {
			return v
		}
		return tok
	})
}
