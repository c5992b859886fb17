package rag

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptTagRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	numericEntityRe = regexp.MustCompile(`&#\d+;`)
	multiSpaceRe    = regexp.MustCompile(` +`)
	multiNewlineRe  = regexp.MustCompile(`\n{3,}`)
)

// Chunk represents a text chunk
type Chunk struct {
	Content    string
	Index      int
	TokenCount int
}

// ChunkText splits text into overlapping chunks, preferring natural break
// points. HTML markup is stripped first so URL sources can be ingested raw.
func ChunkText(content string, chunkSize, overlap, minChunkSize int) []Chunk {
	content = cleanText(content)
	if len(content) == 0 {
		return nil
	}

	if len(content) <= chunkSize {
		return []Chunk{{
			Content:    content,
			Index:      0,
			TokenCount: estimateTokens(content),
		}}
	}

	var chunks []Chunk
	startPos := 0
	chunkIndex := 0

	for startPos < len(content) {
		endPos := startPos + chunkSize
		if endPos > len(content) {
			endPos = len(content)
		}

		if endPos < len(content) {
			endPos = findBreakPoint(content, startPos, endPos)
		}

		chunkContent := strings.TrimSpace(content[startPos:endPos])

		// Skip chunks below the minimum size unless it is the tail
		if len(chunkContent) >= minChunkSize || startPos+len(chunkContent) >= len(content) {
			chunks = append(chunks, Chunk{
				Content:    chunkContent,
				Index:      chunkIndex,
				TokenCount: estimateTokens(chunkContent),
			})
			chunkIndex++
		}

		nextStart := endPos - overlap
		if nextStart <= startPos {
			nextStart = startPos + 1
		}
		startPos = nextStart

		if endPos >= len(content) {
			break
		}
	}

	return chunks
}

// findBreakPoint finds a natural break point near the target position,
// preferring paragraph breaks, then newlines, sentence ends and spaces.
func findBreakPoint(content string, startPos, targetPos int) int {
	searchStart := targetPos - 100
	if searchStart < startPos {
		searchStart = startPos
	}

	searchContent := content[searchStart:targetPos]

	if idx := strings.LastIndex(searchContent, "\n\n"); idx != -1 {
		return searchStart + idx + 2
	}

	if idx := strings.LastIndex(searchContent, "\n"); idx != -1 {
		return searchStart + idx + 1
	}

	for i := len(searchContent) - 1; i >= 0; i-- {
		if searchContent[i] == '.' || searchContent[i] == '!' || searchContent[i] == '?' {
			if i == len(searchContent)-1 || searchContent[i+1] == ' ' {
				return searchStart + i + 1
			}
		}
	}

	if idx := strings.LastIndex(searchContent, " "); idx != -1 {
		return searchStart + idx + 1
	}

	return targetPos
}

func cleanText(text string) string {
	text = stripHTMLTags(text)
	text = normalizeWhitespace(text)
	return strings.TrimSpace(text)
}

func stripHTMLTags(html string) string {
	html = scriptTagRe.ReplaceAllString(html, "")
	html = styleTagRe.ReplaceAllString(html, "")
	text := htmlTagRe.ReplaceAllString(html, " ")

	replacements := map[string]string{
		"&nbsp;": " ",
		"&amp;":  "&",
		"&lt;":   "<",
		"&gt;":   ">",
		"&quot;": "\"",
		"&#39;":  "'",
		"&apos;": "'",
	}
	for entity, replacement := range replacements {
		text = strings.ReplaceAll(text, entity, replacement)
	}

	return numericEntityRe.ReplaceAllString(text, " ")
}

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\t", " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return multiNewlineRe.ReplaceAllString(text, "\n\n")
}

// estimateTokens gives a rough token count, ~4 characters per token
func estimateTokens(text string) int {
	charCount := utf8.RuneCountInString(text)
	return (charCount + 3) / 4
}
