package product

import (
	"strings"

	"golang.org/x/net/html"
)

// DescriptionText returns the description with HTML markup stripped,
// entities unescaped, and whitespace collapsed to single spaces.
func (p Product) DescriptionText() string {
	var (
		b         strings.Builder
		z         = html.NewTokenizer(strings.NewReader(p.Description))
		skipDepth int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "br", "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
