// Package parser extracts [[link]] markup from document bodies, and
// frontmatter metadata from imported Markdown files.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Occurrence is one [[...]] link occurrence in a body, in document order.
type Occurrence struct {
	// Raw is the verbatim text between the delimiters, before alias
	// splitting and trimming.
	Raw string
	// Target is the link target: alias stripped, whitespace trimmed.
	Target string
	// Offset is the byte offset of the opening "[[".
	Offset int
}

// ExtractLinks scans body for [[target]] occurrences in a single linear
// pass. An opening "[[" with no closing "]]" before end-of-input or before
// another "[[" yields no occurrence; the scan restarts at the next "[["
// rather than consuming the remainder. [[Target|Alias]] yields Target.
// Occurrences whose target is empty after trimming are discarded.
func ExtractLinks(body string) []Occurrence {
	var out []Occurrence
	i := 0
	for {
		rel := strings.Index(body[i:], "[[")
		if rel < 0 {
			break
		}
		open := i + rel
		inner := open + 2

		closeRel := strings.Index(body[inner:], "]]")
		nextRel := strings.Index(body[inner:], "[[")
		if closeRel < 0 || (nextRel >= 0 && nextRel < closeRel) {
			// Unterminated occurrence: skip it, restart at the next "[[".
			if nextRel < 0 {
				break
			}
			i = inner + nextRel
			continue
		}

		raw := body[inner : inner+closeRel]
		target := raw
		if p := strings.Index(raw, "|"); p >= 0 {
			target = raw[:p]
		}
		target = strings.TrimSpace(target)
		if target != "" {
			out = append(out, Occurrence{Raw: raw, Target: target, Offset: open})
		}
		i = inner + closeRel + 2
	}
	return out
}

// Targets returns the deduplicated link targets of body, in order of first
// occurrence.
func Targets(body string) []string {
	occs := ExtractLinks(body)
	seen := make(map[string]struct{}, len(occs))
	var out []string
	for _, o := range occs {
		if _, ok := seen[o.Target]; ok {
			continue
		}
		seen[o.Target] = struct{}{}
		out = append(out, o.Target)
	}
	return out
}

// Result holds the output of parsing an imported Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, link targets, and tags from raw
// Markdown bytes. Used by the inbox importer; the index proper works on
// document bodies directly via ExtractLinks.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       Targets(body),
		Tags:        extractTags(fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — return body only, no error.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractTags collects tags from the frontmatter "tags" field.
func extractTags(fm map[string]interface{}) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// docTypeRe matches the frontmatter "type" values the importer accepts.
var docTypeRe = regexp.MustCompile(`^(chapter|wiki_page)$`)

// DocTypeHint returns the frontmatter "type" value if it names a known
// document type, otherwise empty string.
func (r *Result) DocTypeHint() string {
	if r.Frontmatter == nil {
		return ""
	}
	if t, ok := r.Frontmatter["type"]; ok {
		if s, ok := t.(string); ok && docTypeRe.MatchString(s) {
			return s
		}
	}
	return ""
}
