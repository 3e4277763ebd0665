package parser

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mdgraph/mdgraph/pkg/types"
)

var (
	wikilinkRe   = regexp.MustCompile(`\[\[([^\]|]+?)(?:\|([^\]]+?))?\]\]`)
	mdlinkRe     = regexp.MustCompile(`\[[^\]\n]*\]\(([^()\s]+)\)`)
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
)

const contextRadius = 50

// maskCode blanks out fenced code blocks and inline code spans while
// preserving byte offsets, so link extraction never matches inside code.
func maskCode(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inFence := false
	lines := strings.SplitAfter(content, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		fenceLine := strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")

		if inFence || fenceLine {
			out.WriteString(blankOut(line))
			if inFence && fenceLine {
				inFence = false
			} else if fenceLine {
				inFence = true
			}
			continue
		}
		out.WriteString(inlineCodeRe.ReplaceAllStringFunc(line, blankOut))
	}
	return out.String()
}

func blankOut(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != '\n' && c != '\r' {
			b[i] = ' '
		}
	}
	return string(b)
}

// extractWikilinks finds [[Target]] and [[Target|link_type]] patterns. An
// unknown link type falls back to "references" with a warning.
func extractWikilinks(content, masked string, warnings *[]Warning) []ParsedLink {
	var links []ParsedLink
	for _, m := range wikilinkRe.FindAllStringSubmatchIndex(masked, -1) {
		target := strings.TrimSpace(content[m[2]:m[3]])
		if target == "" {
			continue
		}

		linkType := types.LinkReferences
		if m[4] >= 0 {
			label := strings.TrimSpace(content[m[4]:m[5]])
			if types.ValidLinkType(label) {
				linkType = types.LinkType(label)
			} else if label != "" {
				*warnings = append(*warnings, Warning{
					Type: WarnInvalidLinkType,
					Message: fmt.Sprintf("invalid link type %q in [[%s|%s]], falling back to %q",
						label, target, label, types.LinkReferences),
				})
			}
		}

		links = append(links, ParsedLink{
			Target:  target,
			Type:    linkType,
			Context: contextAround(content, m[0], m[1]),
			offset:  m[0],
		})
	}
	return links
}

// extractMarkdownLinks finds internal [text](path.md) links and resolves
// their targets relative to the source file's directory. External URLs,
// anchors, non-Markdown targets, and paths escaping the corpus root are
// skipped.
func extractMarkdownLinks(content, masked, sourcePath string) []ParsedLink {
	sourceDir := path.Dir(filepathToSlash(sourcePath))

	var links []ParsedLink
	for _, m := range mdlinkRe.FindAllStringSubmatchIndex(masked, -1) {
		rawURL := content[m[2]:m[3]]
		if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") ||
			strings.HasPrefix(rawURL, "mailto:") || strings.HasPrefix(rawURL, "#") {
			continue
		}

		cleanURL := rawURL
		if i := strings.IndexAny(cleanURL, "#?"); i >= 0 {
			cleanURL = cleanURL[:i]
		}
		if decoded, err := url.PathUnescape(cleanURL); err == nil {
			cleanURL = decoded
		}
		if !strings.HasSuffix(cleanURL, ".md") {
			continue
		}

		resolved := path.Join(sourceDir, cleanURL)
		if resolved == ".." || strings.HasPrefix(resolved, "../") {
			continue
		}

		links = append(links, ParsedLink{
			Target:  strings.TrimSuffix(resolved, ".md"),
			Type:    types.LinkReferences,
			Context: contextAround(content, m[0], m[1]),
			offset:  m[0],
		})
	}
	return links
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// mergeLinks appends Markdown links whose normalized target is not already
// covered by a wikilink.
func mergeLinks(wikilinks, mdlinks []ParsedLink) []ParsedLink {
	seen := make(map[string]struct{}, len(wikilinks))
	for _, l := range wikilinks {
		seen[NormalizeTarget(l.Target)] = struct{}{}
	}

	links := wikilinks
	for _, l := range mdlinks {
		if _, ok := seen[NormalizeTarget(l.Target)]; ok {
			continue
		}
		links = append(links, l)
	}
	return links
}

// NormalizeTarget canonicalizes a link target or filename for comparison:
// lowercase, no .md extension, NFC normalized.
func NormalizeTarget(target string) string {
	return norm.NFC.String(strings.TrimSuffix(strings.ToLower(target), ".md"))
}

func contextAround(content string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(content) {
		to = len(content)
	}
	return content[from:to]
}

// assignSectionOrders maps each link to the section it occurs in by locating
// section contents inside the original document. Links that cannot be placed
// default to the first section.
func assignSectionOrders(links []ParsedLink, sections []types.Section, content string, bodyOffset int) {
	type span struct {
		start, end int
		order      int
	}
	var spans []span
	cursor := bodyOffset
	for _, sec := range sections {
		if sec.Content == "" {
			continue
		}
		probe := sec.Content
		if len(probe) > 40 {
			probe = probe[:40]
		}
		idx := strings.Index(content[cursor:], probe)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(sec.Content)
		spans = append(spans, span{start: start, end: end, order: sec.Order})
		cursor = end
	}

	for i := range links {
		links[i].SectionOrder = 0
		for _, sp := range spans {
			if links[i].offset >= sp.start && links[i].offset < sp.end {
				links[i].SectionOrder = sp.order
				break
			}
		}
	}
}
