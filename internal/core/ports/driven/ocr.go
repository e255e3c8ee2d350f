package driven

import "context"

// OCRService recognises text in images and scanned documents.
type OCRService interface {
	// ExtractText returns the recognised text of a file.
	// ext is the lower-cased file extension including the dot.
	ExtractText(ctx context.Context, data []byte, ext string) (string, error)
}
