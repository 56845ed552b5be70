package classify

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var markupFingerprints = []string{"<html", "<!doctype html", `{\rtf`}

// HasMarkup reports whether text carries an HTML root tag or an RTF header.
func HasMarkup(text string) bool {
	lower := strings.ToLower(text)
	for _, f := range markupFingerprints {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// PlainText extracts readable text from HTML or RTF markup.
func PlainText(markup string) string {
	if strings.HasPrefix(strings.TrimSpace(markup), `{\rtf`) {
		return rtfText(markup)
	}
	return htmlText(markup)
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

func htmlText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseLines(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

// rtfIgnoredGroups are destinations whose content is not document text.
var rtfIgnoredGroups = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true, "pict": true,
	"header": true, "footer": true, "listtable": true, "listoverridetable": true,
}

func rtfText(markup string) string {
	var b strings.Builder
	// skipDepth is the group depth at which an ignored destination began; 0 when not skipping.
	depth, skipDepth := 0, 0
	for i := 0; i < len(markup); i++ {
		ch := markup[i]
		switch ch {
		case '{':
			depth++
		case '}':
			if skipDepth == depth {
				skipDepth = 0
			}
			depth--
		case '\\':
			if i+1 >= len(markup) {
				continue
			}
			next := markup[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if skipDepth == 0 {
					b.WriteByte(next)
				}
				i++
			case next == '*':
				if skipDepth == 0 {
					skipDepth = depth
				}
				i++
			case next == '\'':
				if i+3 < len(markup) {
					if v, err := strconv.ParseUint(markup[i+2:i+4], 16, 8); err == nil && skipDepth == 0 {
						b.WriteRune(rune(v))
					}
				}
				i += 3
			case isASCIILetter(next):
				j := i + 1
				for j < len(markup) && isASCIILetter(markup[j]) {
					j++
				}
				word := markup[i+1 : j]
				for j < len(markup) && (markup[j] == '-' || (markup[j] >= '0' && markup[j] <= '9')) {
					j++
				}
				if j < len(markup) && markup[j] == ' ' {
					j++
				}
				i = j - 1
				if rtfIgnoredGroups[word] && skipDepth == 0 {
					skipDepth = depth
				}
				if skipDepth == 0 && (word == "par" || word == "line") {
					b.WriteByte('\n')
				}
				if skipDepth == 0 && word == "tab" {
					b.WriteByte('\t')
				}
			default:
				i++
			}
		case '\r', '\n':
		default:
			if skipDepth == 0 && depth > 0 {
				b.WriteByte(ch)
			}
		}
	}
	return collapseLines(b.String())
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// collapseLines trims each line, squeezes inner whitespace and drops empty lines.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
