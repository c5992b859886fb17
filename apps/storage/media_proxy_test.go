package storage

import (
	"strings"
	"testing"
)

func TestParseRangeHeaderExplicitRange(t *testing.T) {
	start, end := parseRangeHeader("bytes=100-199", 1000)
	if start != 100 || end != 199 {
		t.Errorf("expected 100-199, got %d-%d", start, end)
	}
}

func TestParseRangeHeaderOpenEndedIsCapped(t *testing.T) {
	total := int64(100 * 1024 * 1024)
	start, end := parseRangeHeader("bytes=0-", total)
	if start != 0 {
		t.Errorf("expected start 0, got %d", start)
	}
	if end-start+1 != 5*1024*1024 {
		t.Errorf("open-ended range must be capped at 5MB, got %d bytes", end-start+1)
	}
}

func TestParseRangeHeaderClampsToObjectSize(t *testing.T) {
	start, end := parseRangeHeader("bytes=0-999999", 500)
	if start != 0 || end != 499 {
		t.Errorf("expected 0-499, got %d-%d", start, end)
	}
}

func TestGenerateMediaKeyIsUniquePerCall(t *testing.T) {
	a := GenerateMediaKey(7, "Chart.PNG")
	b := GenerateMediaKey(7, "Chart.PNG")
	if a == b {
		t.Error("keys must be unique per upload")
	}
	if !strings.HasPrefix(a, "media/7/") || !strings.HasSuffix(a, ".png") {
		t.Errorf("unexpected key shape %q", a)
	}
}

func TestIsVideoKey(t *testing.T) {
	if !isVideoKey("media/1/a.mp4") {
		t.Error("mp4 is video")
	}
	if isVideoKey("media/1/a.png") {
		t.Error("png is not video")
	}
}
