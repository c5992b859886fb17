package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/gofiber/fiber/v2"
)

// RegisterMediaProxy mounts the public media route. Objects stay in a private
// bucket; this route streams them out with long-lived cache headers.
func RegisterMediaProxy(router *fiber.App) {
	router.Get("/media/*", MediaProxyHandler)
}

// MediaProxyHandler streams a media-library object. Video requests with a
// Range header are served as partial content so players can seek.
func MediaProxyHandler(c *fiber.Ctx) error {
	if !IsEnabled() {
		return c.Status(503).JSON(fiber.Map{"error": "Media storage not enabled"})
	}

	key := c.Params("*")
	if key == "" || strings.Contains(key, "..") {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid media path"})
	}

	if rangeHeader := c.Get("Range"); rangeHeader != "" && isVideoKey(key) {
		return serveVideoRange(c, key, rangeHeader)
	}

	body, contentType, contentLength, err := GetReader(context.Background(), key)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Media not found"})
	}

	if contentType == "" {
		contentType = contentTypeFromExt(filepath.Ext(key))
	}
	if isVideoKey(key) {
		c.Set("Accept-Ranges", "bytes")
	}
	c.Set("Content-Type", contentType)
	c.Set("Cache-Control", "public, max-age=31536000")

	if contentLength > 0 {
		return c.SendStream(body, int(contentLength))
	}
	return c.SendStream(body)
}

func isVideoKey(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".mp4", ".webm", ".mov":
		return true
	}
	return false
}

// serveVideoRange answers one Range request with 206 Partial Content. The
// chunk is buffered in memory before replying; open-ended ranges are capped
// so a "bytes=0-" probe does not pull the whole file.
func serveVideoRange(c *fiber.Ctx, key, rangeHeader string) error {
	ctx := context.Background()

	info, err := Head(ctx, key)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Media not found"})
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeFromExt(filepath.Ext(key))
	}

	start, end := parseRangeHeader(rangeHeader, info.Size)
	body, _, _, _, err := DownloadRange(ctx, key, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		log.Error("Failed to fetch media range %s: %v", key, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch media range"})
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		log.Error("Failed to read media range %s: %v", key, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read media range"})
	}

	c.Set("Accept-Ranges", "bytes")
	c.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size))
	c.Set("Content-Length", strconv.Itoa(len(data)))
	c.Set("Content-Type", contentType)
	c.Set("Cache-Control", "public, max-age=31536000")
	return c.Status(206).Send(data)
}

// parseRangeHeader parses "bytes=X-" and "bytes=X-Y". Explicit ranges are
// honored exactly; open-ended ranges are capped at 5MB per response.
func parseRangeHeader(rangeHeader string, totalSize int64) (int64, int64) {
	const maxChunkSize int64 = 5 * 1024 * 1024

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(spec, "-", 2)

	start := int64(0)
	if v, err := strconv.ParseInt(parts[0], 10, 64); err == nil && v >= 0 {
		start = v
	}
	if start >= totalSize {
		start = 0
	}

	end := totalSize - 1
	if len(parts) == 2 && parts[1] != "" {
		if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil && v >= start {
			end = v
		}
	} else if end-start+1 > maxChunkSize {
		end = start + maxChunkSize - 1
	}
	if end >= totalSize {
		end = totalSize - 1
	}

	return start, end
}

func contentTypeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
