package parser

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/mdgraph/mdgraph/pkg/types"
)

const (
	defaultMaxTokens = 256
	defaultMinTokens = 32
)

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	paragraphRe = regexp.MustCompile(`\n\n+`)
)

// EstimateTokens approximates the token count of text. CJK scripts count per
// character, everything else per whitespace-separated word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cjk := 0
	var latin strings.Builder
	for _, r := range text {
		if isCJK(r) {
			cjk++
			latin.WriteByte(' ')
		} else {
			latin.WriteRune(r)
		}
	}
	words := len(strings.Fields(latin.String()))
	return int(math.Ceil(float64(cjk)*1.5 + float64(words)*1.3))
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		(r >= 0x3000 && r <= 0x303f)
}

type rawSection struct {
	heading string
	content string
	tokens  int
}

// splitSections splits a document body at H2/H3 headings. H1 lines become
// plain text in the current section, H4 and deeper stay inside their parent
// section. Oversized sections are re-split at paragraph boundaries and tiny
// sections are merged into their predecessor.
func splitSections(body string, opts *Options) []types.Section {
	maxTokens := defaultMaxTokens
	minTokens := defaultMinTokens
	if opts != nil {
		if opts.MaxTokens > 0 {
			maxTokens = opts.MaxTokens
		}
		if opts.MinTokens > 0 {
			minTokens = opts.MinTokens
		}
	}

	var raw []rawSection
	var heading string
	var hasHeading bool
	var lines []string
	inFence := false
	var fenceMarker string

	flush := func() {
		content := strings.TrimSpace(strings.Join(lines, "\n"))
		if content == "" && !hasHeading {
			lines = nil
			return
		}
		raw = append(raw, rawSection{heading: heading, content: content, tokens: EstimateTokens(content)})
		lines = nil
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)

		if inFence {
			lines = append(lines, line)
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fenceMarker = trimmed[:3]
			lines = append(lines, line)
			continue
		}

		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			lines = append(lines, line)
			continue
		}

		switch depth := len(m[1]); {
		case depth == 1:
			// H1 is the document title, not a split boundary
			lines = append(lines, strings.TrimSpace(m[2]))
		case depth == 2 || depth == 3:
			flush()
			heading = strings.TrimSpace(m[2])
			hasHeading = true
		default:
			lines = append(lines, line)
		}
	}
	flush()

	if len(raw) == 0 {
		return []types.Section{{Heading: "", Order: 0, Content: ""}}
	}

	var expanded []rawSection
	for _, sec := range raw {
		if sec.tokens > maxTokens {
			expanded = append(expanded, splitByParagraph(sec, maxTokens)...)
		} else {
			expanded = append(expanded, sec)
		}
	}
	merged := mergeTinySections(expanded, minTokens)

	sections := make([]types.Section, len(merged))
	for i, sec := range merged {
		sections[i] = types.Section{
			Heading:    sec.heading,
			Order:      i,
			Content:    sec.content,
			TokenCount: sec.tokens,
		}
	}
	return sections
}

func splitByParagraph(sec rawSection, maxTokens int) []rawSection {
	paragraphs := paragraphRe.Split(sec.content, -1)

	var out []rawSection
	var chunk []string
	chunkTokens := 0
	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)
		if chunkTokens+paraTokens > maxTokens && len(chunk) > 0 {
			out = append(out, rawSection{
				heading: sec.heading,
				content: strings.Join(chunk, "\n\n"),
				tokens:  chunkTokens,
			})
			chunk = nil
			chunkTokens = 0
		}
		chunk = append(chunk, para)
		chunkTokens += paraTokens
	}
	if len(chunk) > 0 {
		out = append(out, rawSection{
			heading: sec.heading,
			content: strings.Join(chunk, "\n\n"),
			tokens:  chunkTokens,
		})
	}
	return out
}

func mergeTinySections(sections []rawSection, minTokens int) []rawSection {
	if len(sections) <= 1 {
		return sections
	}
	out := []rawSection{sections[0]}
	for _, sec := range sections[1:] {
		if sec.tokens < minTokens {
			prev := &out[len(out)-1]
			prev.content = prev.content + "\n\n" + sec.content
			prev.tokens += sec.tokens
		} else {
			out = append(out, sec)
		}
	}
	return out
}
