package mimetypes

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind groups mime types by the message type allowed to carry them.
type Kind string

const (
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

// Classify accepts only mime types known to the detection tree.
// Parameters such as charset are ignored, aliases resolve to their canonical type.
func Classify(raw string) (Kind, bool) {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", false
	}
	known := mimetype.Lookup(mt)
	if known == nil {
		return "", false
	}
	switch {
	case strings.HasPrefix(known.String(), "image/"):
		return KindImage, true
	case strings.HasPrefix(known.String(), "audio/"):
		return KindAudio, true
	default:
		return KindDocument, true
	}
}

// Extension is the canonical file extension of a known type, with its dot.
func Extension(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	if known := mimetype.Lookup(mt); known != nil {
		return known.Extension()
	}
	return ""
}
