package rag

import (
	"strings"
	"testing"
)

func TestChunkTextSmallContentSingleChunk(t *testing.T) {
	chunks := ChunkText("short answer", 500, 50, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short answer" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
	if chunks[0].TokenCount == 0 {
		t.Error("expected a token estimate")
	}
}

func TestChunkTextEmptyContent(t *testing.T) {
	if chunks := ChunkText("   ", 500, 50, 100); chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkTextSplitsLongContent(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("This is a sentence about the product catalog. ")
	}

	chunks := ChunkText(sb.String(), 500, 50, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if len(chunk.Content) > 500 {
			t.Errorf("chunk %d exceeds size: %d", i, len(chunk.Content))
		}
	}
}

func TestChunkTextStripsHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style><script>alert(1)</script></head>
<body><h1>Shipping &amp; Returns</h1><p>We ship worldwide.</p></body></html>`

	chunks := ChunkText(html, 500, 50, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	content := chunks[0].Content
	if strings.Contains(content, "<") || strings.Contains(content, "alert") || strings.Contains(content, "color:red") {
		t.Errorf("markup leaked into chunk: %q", content)
	}
	if !strings.Contains(content, "Shipping & Returns") || !strings.Contains(content, "We ship worldwide.") {
		t.Errorf("text content missing: %q", content)
	}
}
