package telegram

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Telegram only renders a small whitelist of HTML tags; anything else makes
// sendMessage reject the whole payload.
var allowedTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "ins": true,
	"s": true, "strike": true, "del": true,
	"code": true, "pre": true,
	"a":          true,
	"blockquote": true,
	"tg-spoiler": true,
}

// RenderHTML converts assistant markdown into Telegram-safe HTML. Inline HTML
// in the source survives when Telegram supports the tag and is shown as
// literal text otherwise.
func RenderHTML(markdown string) string {
	var b strings.Builder
	lines := strings.Split(markdown, "\n")
	inPre := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inPre {
				b.WriteString("</pre>\n")
			} else {
				b.WriteString("<pre>")
			}
			inPre = !inPre
			continue
		}
		if inPre {
			b.WriteString(html.EscapeString(line))
			b.WriteString("\n")
			continue
		}
		b.WriteString(renderInline(line))
		b.WriteString("\n")
	}
	if inPre {
		b.WriteString("</pre>")
	}
	return sanitizeHTML(strings.TrimRight(b.String(), "\n"))
}

var (
	linkPattern   = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
	boldPattern   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*\n]+)\*`)
	strikePattern = regexp.MustCompile(`~~([^~\n]+)~~`)
	headerPattern = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
)

func renderInline(line string) string {
	if m := headerPattern.FindStringSubmatch(line); m != nil {
		line = "**" + m[1] + "**"
	}

	// Split on backticks so code spans escape markdown processing. An
	// unpaired trailing backtick stays literal.
	parts := strings.Split(line, "`")
	var b strings.Builder
	for i, part := range parts {
		if i%2 == 1 && i != len(parts)-1 {
			b.WriteString("<code>")
			b.WriteString(html.EscapeString(part))
			b.WriteString("</code>")
			continue
		}
		if i%2 == 1 {
			b.WriteString("`")
		}
		part = linkPattern.ReplaceAllString(part, `<a href="$2">$1</a>`)
		part = boldPattern.ReplaceAllString(part, "<b>$1</b>")
		part = italicPattern.ReplaceAllString(part, "<i>$1</i>")
		part = strikePattern.ReplaceAllString(part, "<s>$1</s>")
		b.WriteString(part)
	}
	return b.String()
}

// sanitizeHTML re-tokenizes the rendered fragment, keeps whitelisted tags and
// escapes everything else so a stray tag cannot break delivery.
func sanitizeHTML(in string) string {
	tok := html.NewTokenizer(strings.NewReader(in))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(html.EscapeString(string(tok.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			t := tok.Token()
			if !allowedTags[t.Data] {
				b.WriteString(html.EscapeString(t.String()))
				continue
			}
			if t.Data == "a" {
				href := ""
				for _, attr := range t.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
				fmt.Fprintf(&b, `<a href=%q>`, href)
				continue
			}
			b.WriteString("<" + t.Data + ">")
		case html.EndTagToken:
			t := tok.Token()
			if !allowedTags[t.Data] {
				b.WriteString(html.EscapeString(t.String()))
				continue
			}
			b.WriteString("</" + t.Data + ">")
		}
	}
}
