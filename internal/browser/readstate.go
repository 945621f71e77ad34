package browser

import (
	"bytes"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/codefionn/agentschnell/internal/logger"
)

var multipleNewlines = regexp.MustCompile(`\n{3,}`)

var droppedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"iframe":   {},
	"svg":      {},
	"nav":      {},
	"footer":   {},
	"header":   {},
}

// renderPage converts page HTML into compact markdown for the model. On any
// conversion failure the raw HTML comes back so the model still sees the
// page.
func renderPage(pageHTML string) string {
	cleaned, err := stripNoise(pageHTML)
	if err != nil {
		logger.Debug("browser: failed to preprocess page html: %v", err)
		cleaned = pageHTML
	}

	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		logger.Warn("browser: failed to convert page to markdown: %v", err)
		return pageHTML
	}

	markdown = multipleNewlines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

// stripNoise removes non-content elements before conversion.
func stripNoise(input string) (string, error) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input, err
	}

	removeDroppedNodes(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return input, err
	}
	return buf.String(), nil
}

func removeDroppedNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		removeDroppedNodes(child)
		child = next
	}

	if n.Type == html.ElementNode {
		if _, drop := droppedTags[strings.ToLower(n.Data)]; drop && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}
