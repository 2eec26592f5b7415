package service

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"lexpost/internal/models"
)

// Renderer turns letter bodies (markdown) into sanitized HTML for the archive, preview and email.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("div", "p", "span", "header", "section")

	return &Renderer{md: md, sanitizer: policy}
}

// ToHTML converts markdown without sanitizing.
func (r *Renderer) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) Sanitize(htmlContent string) string {
	return r.sanitizer.Sanitize(htmlContent)
}

func (r *Renderer) ToHTMLSanitized(markdown string) (string, error) {
	out, err := r.ToHTML(markdown)
	if err != nil {
		return "", err
	}
	return r.Sanitize(out), nil
}

// RenderLetter wraps the letter body with its sender/recipient block.
// User-supplied fields pass through the same sanitizer as the body.
func (r *Renderer) RenderLetter(l *models.Letter, now time.Time) (string, error) {
	var md strings.Builder
	if l.SenderName != "" {
		md.WriteString(l.SenderName + "  \n")
		if l.SenderAddress != "" {
			md.WriteString(hardBreaks(l.SenderAddress) + "\n")
		}
		md.WriteString("\n")
	}
	md.WriteString(now.Format("January 2, 2006") + "\n\n")
	if l.RecipientName != "" {
		md.WriteString(l.RecipientName + "  \n")
		if l.RecipientAddress != "" {
			md.WriteString(hardBreaks(l.RecipientAddress) + "\n")
		}
		md.WriteString("\n")
	}
	md.WriteString("**Re: " + l.Title + "**\n\n")
	md.WriteString(l.Body())

	body, err := r.ToHTMLSanitized(md.String())
	if err != nil {
		return "", err
	}
	return `<div class="letter letter-` + r.Sanitize(l.LetterType) + `">` + body + `</div>`, nil
}

func hardBreaks(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "  \n")
}
