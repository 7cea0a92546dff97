package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileTextExtractor reads plain-text clinical documents from disk. Binary
// formats (PDF, images) are out of scope for the built-in extractor and are
// expected to arrive pre-converted; a dedicated OCR or PDF service plugs in
// behind the same interface.
type FileTextExtractor struct{}

// ExtractText reads the document at path and returns its text.
func (FileTextExtractor) ExtractText(ctx context.Context, path string) (*TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(data) {
		return &TextResult{
			Success:      false,
			ErrorMessage: "document is not valid UTF-8 text; convert binary formats before processing",
		}, nil
	}

	text := string(data)
	return &TextResult{
		Success:   true,
		Text:      text,
		PageCount: pageCount(text),
		Metadata: map[string]interface{}{
			"filename":  filepath.Base(path),
			"size":      len(data),
			"extension": strings.ToLower(filepath.Ext(path)),
		},
	}, nil
}

// pageCount approximates pages by form-feed separators, minimum one.
func pageCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\f") + 1
}
