// Package patch parses file-modification directives out of agent replies and applies them.
package patch

import "strings"

const (
	openTag     = "<file_modification>"
	closeTag    = "</file_modification>"
	pathOpen    = "<file_path>"
	pathClose   = "</file_path>"
	contentOpen = "<content>"
	contentEnd  = "</content>"
)

// Directive asks for one file to be overwritten. It is consumed once and never stored.
type Directive struct {
	Path    string
	Content string
}

// Extract finds the first <file_modification> block in text.
//
// On success it returns the directive and text with every complete block
// removed and surrounding whitespace trimmed. Only the first block becomes a
// directive. A missing or malformed block yields ok=false
// and text is returned unchanged.
func Extract(text string) (directive Directive, sanitized string, ok bool) {
	start := strings.Index(text, openTag)
	if start < 0 {
		return Directive{}, text, false
	}

	innerStart := start + len(openTag)
	innerLen := strings.Index(text[innerStart:], closeTag)
	if innerLen < 0 {
		return Directive{}, text, false
	}

	inner := text[innerStart : innerStart+innerLen]
	end := innerStart + innerLen + len(closeTag)

	path, found := between(inner, pathOpen, pathClose, false)
	if !found {
		return Directive{}, text, false
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Directive{}, text, false
	}

	content, found := between(inner, contentOpen, contentEnd, true)
	if !found {
		return Directive{}, text, false
	}

	sanitized = strings.TrimSpace(text[:start] + stripBlocks(text[end:]))
	return Directive{Path: path, Content: unwrapNewlines(content)}, sanitized, true
}

// stripBlocks removes every <file_modification>...</file_modification> span.
// An unterminated opening tag and anything after it are left as is.
func stripBlocks(text string) string {
	var b strings.Builder
	for {
		start := strings.Index(text, openTag)
		if start < 0 {
			break
		}
		n := strings.Index(text[start+len(openTag):], closeTag)
		if n < 0 {
			break
		}
		b.WriteString(text[:start])
		text = text[start+len(openTag)+n+len(closeTag):]
	}
	b.WriteString(text)
	return b.String()
}

// between returns the text between open and the first (or last) following close.
func between(s, open, close string, lastClose bool) (string, bool) {
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(open):]

	var j int
	if lastClose {
		j = strings.LastIndex(rest, close)
	} else {
		j = strings.Index(rest, close)
	}
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// unwrapNewlines drops the single line break agents put right inside the content tags.
func unwrapNewlines(content string) string {
	if strings.HasPrefix(content, "\r\n") {
		content = content[2:]
	} else if strings.HasPrefix(content, "\n") {
		content = content[1:]
	}

	if strings.HasSuffix(content, "\r\n") {
		content = content[:len(content)-2]
	} else if strings.HasSuffix(content, "\n") {
		content = content[:len(content)-1]
	}
	return content
}
