package ai

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/imageutil"
	"github.com/talkbase-io/talkbase-backend/lib/pdfutil"
)

const (
	maxAttachmentBytes = 20 * 1024 * 1024
	maxImageDimension  = 1024
)

var attachmentClient = &http.Client{Timeout: 30 * time.Second}

// preparedAttachment is the model-ready form of an inbound attachment: images
// become an inline data URL for the current turn, documents become extracted
// text concatenated into the message body. Raw document bytes are never sent
// to the model.
type preparedAttachment struct {
	ImageDataURL  string
	ExtractedText string
}

func prepareAttachment(att *models.Attachment) (*preparedAttachment, error) {
	data, err := downloadAttachment(att.URL)
	if err != nil {
		return nil, err
	}

	switch att.Type {
	case "image":
		scaled, err := imageutil.Downscale(data, maxImageDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to process image: %w", err)
		}
		return &preparedAttachment{ImageDataURL: imageutil.ToDataURL(scaled)}, nil

	case "pdf":
		text, err := pdfutil.ExtractText(data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract document text: %w", err)
		}
		return &preparedAttachment{ExtractedText: text}, nil

	default:
		return nil, fmt.Errorf("unsupported attachment type %q", att.Type)
	}
}

func downloadAttachment(url string) ([]byte, error) {
	resp, err := attachmentClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}

// historyPlaceholder is the text stand-in for a prior-turn attachment. Images
// are only inlined on the turn they arrive; re-sending binary history is
// never done.
func historyPlaceholder(att *models.Attachment) string {
	switch att.Type {
	case "image":
		if att.AltText != "" {
			return fmt.Sprintf("[image attachment: %s]", att.AltText)
		}
		return "[image attachment]"
	case "pdf":
		return "[document attachment]"
	default:
		return "[attachment]"
	}
}
