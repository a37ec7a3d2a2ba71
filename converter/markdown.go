package converter

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: drops script, style, iframe, noscript, head and comments.
//   - commonmark plugin: headings, lists, links, images, code, emphasis.
//   - table plugin: keeps table structure with minimal cell padding.
//
// Links and images are always rendered as Markdown, never as raw HTML.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// document is a parsed page ready for conversion.
type document struct {
	root  *html.Node
	title string
	links int
}

// parseDocument parses rendered HTML and rewrites relative link and image
// targets against pageURL.
func parseDocument(rawHTML, pageURL string) (*document, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	if base, err := url.Parse(pageURL); err == nil && base.IsAbs() {
		resolveAttr(doc.Find("a[href]"), "href", base)
		resolveAttr(doc.Find("img[src]"), "src", base)
	}

	return &document{
		root:  root,
		title: strings.TrimSpace(doc.Find("title").First().Text()),
		links: doc.Find("a[href]").Length(),
	}, nil
}

// resolveAttr makes attr absolute on every selected element. Fragment-only
// and already-absolute references are left alone.
func resolveAttr(sel *goquery.Selection, attr string, base *url.URL) {
	sel.Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr(attr)
		ref := strings.TrimSpace(raw)
		if ref == "" || strings.HasPrefix(ref, "#") {
			return
		}
		u, err := url.Parse(ref)
		if err != nil || u.Scheme != "" {
			return
		}
		s.SetAttr(attr, base.ResolveReference(u).String())
	})
}

// ToMarkdown converts rendered HTML to Markdown using html-to-markdown v2.
//
// Relative URLs in <a> and <img> are resolved against pageURL so the output
// is self-contained. Escaped underscores ("\_") are unescaped: identifiers
// and URLs read better without them.
func ToMarkdown(conv *converter.Converter, rawHTML string, pageURL string) (string, error) {
	doc, err := parseDocument(rawHTML, pageURL)
	if err != nil {
		return "", err
	}
	return renderMarkdown(conv, doc, pageURL)
}

func renderMarkdown(conv *converter.Converter, doc *document, pageURL string) (string, error) {
	out, err := conv.ConvertNode(doc.root, converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	return unescapeUnderscores(string(out)), nil
}

// unescapeUnderscores replaces every `\_` with `_`.
func unescapeUnderscores(md string) string {
	return strings.ReplaceAll(md, `\_`, "_")
}
