package browser

import (
	"strings"
	"testing"
)

func TestRenderPage(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Docs</title><style>body { color: red; }</style></head>
<body>
<nav><a href="/home">Home</a></nav>
<h1>Getting Started</h1>
<p>Install the <strong>agent</strong> first.</p>
<script>console.log("tracking")</script>
</body>
</html>`

	markdown := renderPage(page)

	if !strings.Contains(markdown, "Getting Started") {
		t.Errorf("expected heading in markdown, got %q", markdown)
	}
	if !strings.Contains(markdown, "**agent**") {
		t.Errorf("expected bold text converted, got %q", markdown)
	}
	if strings.Contains(markdown, "console.log") {
		t.Errorf("script content must be stripped, got %q", markdown)
	}
	if strings.Contains(markdown, "color: red") {
		t.Errorf("style content must be stripped, got %q", markdown)
	}
	if strings.Contains(markdown, "Home") {
		t.Errorf("navigation must be stripped, got %q", markdown)
	}
}

func TestRenderPage_CollapsesBlankLines(t *testing.T) {
	page := "<html><body><p>one</p><br><br><br><br><p>two</p></body></html>"
	markdown := renderPage(page)
	if strings.Contains(markdown, "\n\n\n") {
		t.Errorf("expected blank lines collapsed, got %q", markdown)
	}
}

func TestStripNoise_InvalidHTMLFallsBack(t *testing.T) {
	// html.Parse is lenient; even fragments come back renderable.
	out, err := stripNoise("<p>fragment")
	if err != nil {
		t.Fatalf("stripNoise failed: %v", err)
	}
	if !strings.Contains(out, "fragment") {
		t.Errorf("expected content preserved, got %q", out)
	}
}
