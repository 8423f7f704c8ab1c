package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const popupSummaryMaxLength = 1000

// SummarizePopup reduces captured popup HTML to a readable one-line summary
// for the event log: the title plus the visible text, scripts and styles
// stripped.
func SummarizePopup(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse popup content: %w", err)
	}

	title := extractTitle(doc)

	var b strings.Builder
	collectText(doc, &b)
	text := strings.Join(strings.Fields(b.String()), " ")
	if len(text) > popupSummaryMaxLength {
		text = text[:popupSummaryMaxLength] + "..."
	}

	switch {
	case title != "" && text != "":
		return fmt.Sprintf("%s: %s", title, text), nil
	case title != "":
		return title, nil
	case text != "":
		return text, nil
	default:
		return "(empty popup)", nil
	}
}

// collectText walks the tree gathering text nodes, skipping non-visible
// elements.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "title", "head":
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}
