package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// User agent for outbound page fetches
	fetchUserAgent = "LLM-Council-Fetcher/1.0 (Educational Project)"

	// MaxFetchedContentLength caps extracted page text so prompts stay sane
	MaxFetchedContentLength = 20000
)

// FetchURLContent fetches a web page and extracts its readable text so it can
// be attached to a council question. Scripts, styles and navigation chrome
// are stripped; the result is whitespace-collapsed and length-capped.
func FetchURLContent(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("URL returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	return ExtractReadableText(doc), nil
}

// ExtractReadableText pulls the visible text out of a parsed document.
// Prefers <main>/<article> when present, falls back to <body>.
func ExtractReadableText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	text := collapseWhitespace(root.Text())
	if len(text) > MaxFetchedContentLength {
		text = text[:MaxFetchedContentLength]
	}
	return text
}

// collapseWhitespace normalizes runs of whitespace. Line breaks survive as
// single newlines so some document structure remains.
func collapseWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
