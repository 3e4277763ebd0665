// Package parser turns Markdown documents into sections, typed links, and
// frontmatter metadata.
package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// Frontmatter holds the recognized YAML frontmatter fields.
type Frontmatter struct {
	Title      string   `yaml:"title"`
	DocType    string   `yaml:"doc_type"`
	SourceRefs []string `yaml:"source_refs"`
}

// Warning is a non-fatal problem found while parsing, surfaced to logs
// instead of failing the document.
type Warning struct {
	Type    string
	Message string
}

const (
	WarnInvalidFrontmatter = "invalid_frontmatter"
	WarnInvalidLinkType    = "invalid_link_type"
)

// ParsedLink is a link as extracted from the Markdown source, before target
// resolution. SectionOrder points at the section the link occurs in.
type ParsedLink struct {
	Target       string
	Type         types.LinkType
	Context      string
	SectionOrder int

	offset int
}

// Result is the full output of parsing one document.
type Result struct {
	Frontmatter Frontmatter
	Title       string
	Sections    []types.Section
	Links       []ParsedLink
	Warnings    []Warning
}

// Options tunes section splitting.
type Options struct {
	MaxTokens int
	MinTokens int
}

// Parse splits content into sections, extracts wikilinks and internal
// Markdown links, and decodes frontmatter. The filepath is used for warning
// messages, title fallback, and relative link resolution.
func Parse(content, filepath string, opts *Options) (*Result, error) {
	res := &Result{}

	yamlText, body, bodyOffset := extractFrontmatter(content)
	res.Frontmatter = parseFrontmatter(yamlText, filepath, &res.Warnings)

	res.Sections = splitSections(body, opts)

	masked := maskCode(content)
	wikilinks := extractWikilinks(content, masked, &res.Warnings)
	mdlinks := extractMarkdownLinks(content, masked, filepath)
	res.Links = mergeLinks(wikilinks, mdlinks)
	assignSectionOrders(res.Links, res.Sections, content, bodyOffset)

	res.Title = res.Frontmatter.Title
	if res.Title == "" {
		res.Title = strings.TrimSuffix(filepath, ".md")
	}
	return res, nil
}

// extractFrontmatter splits a leading "---" delimited YAML block off the
// document. Returns the YAML text, the remaining body, and the body's byte
// offset in the original content.
func extractFrontmatter(content string) (yamlText, body string, bodyOffset int) {
	nl := strings.IndexByte(content, '\n')
	if nl < 0 || strings.TrimRight(content[:nl], "\r") != "---" {
		return "", content, 0
	}

	rest := content[nl+1:]
	pos := 0
	for {
		lineEnd := strings.IndexByte(rest[pos:], '\n')
		var line string
		var next int
		if lineEnd < 0 {
			line = rest[pos:]
			next = len(rest)
		} else {
			line = rest[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		}
		if strings.TrimRight(line, "\r") == "---" {
			return rest[:pos], rest[next:], nl + 1 + next
		}
		if lineEnd < 0 {
			// Unterminated frontmatter: treat the whole document as body
			return "", content, 0
		}
		pos = next
	}
}

func parseFrontmatter(yamlText, filepath string, warnings *[]Warning) Frontmatter {
	var fm Frontmatter
	if strings.TrimSpace(yamlText) == "" {
		return fm
	}

	var raw struct {
		Title      any `yaml:"title"`
		DocType    any `yaml:"doc_type"`
		SourceRefs any `yaml:"source_refs"`
	}
	if err := yaml.Unmarshal([]byte(yamlText), &raw); err != nil {
		*warnings = append(*warnings, Warning{
			Type:    WarnInvalidFrontmatter,
			Message: fmt.Sprintf("failed to parse YAML frontmatter in %s: %v", filepath, err),
		})
		return fm
	}

	if title, ok := raw.Title.(string); ok {
		fm.Title = strings.TrimSpace(title)
	}

	if raw.DocType != nil {
		docType, ok := raw.DocType.(string)
		if ok && types.ValidDocType(docType) {
			fm.DocType = docType
		} else {
			*warnings = append(*warnings, Warning{
				Type: WarnInvalidFrontmatter,
				Message: fmt.Sprintf("invalid doc_type %q in %s, falling back to %q",
					raw.DocType, filepath, types.DocTypeGuide),
			})
			fm.DocType = string(types.DocTypeGuide)
		}
	}

	if raw.SourceRefs != nil {
		refs, ok := raw.SourceRefs.([]any)
		if !ok {
			*warnings = append(*warnings, Warning{
				Type:    WarnInvalidFrontmatter,
				Message: fmt.Sprintf("source_refs in %s must be a list of strings", filepath),
			})
		} else {
			for _, r := range refs {
				ref, ok := r.(string)
				if !ok {
					continue
				}
				ref = strings.TrimSpace(ref)
				if strings.Contains(ref, "..") {
					*warnings = append(*warnings, Warning{
						Type: WarnInvalidFrontmatter,
						Message: fmt.Sprintf("source_ref %q in %s contains %q and is ignored",
							ref, filepath, ".."),
					})
					continue
				}
				fm.SourceRefs = append(fm.SourceRefs, ref)
			}
		}
	}
	return fm
}
