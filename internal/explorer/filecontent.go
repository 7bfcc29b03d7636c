package explorer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/deskmux/deskmux/internal/message"
)

const (
	// MaxImageSize is the maximum allowed image size (5MB).
	MaxImageSize = 5 * 1024 * 1024

	// MaxTextSize caps extracted text; longer files are truncated.
	MaxTextSize = 256 * 1024
)

// imageTypes maps image extensions to MIME types.
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// documentTypes are formats that need a text extraction engine.
var documentTypes = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
	".pptx": true,
}

// textTypes is the allow-list of extensions read as plain UTF-8 text.
var textTypes = map[string]bool{
	".txt": true, ".md": true, ".markdown": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".java": true, ".rb": true,
	".sh": true, ".sql": true, ".html": true, ".css": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".csv": true, ".log": true,
}

// Kind classifies file content for AI consumption.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindText     Kind = "text"
)

// FileContent is the result of converting a file into AI message content.
type FileContent struct {
	Kind  Kind
	Text  string
	Image *message.ImageData
}

// TextExtractor extracts plain text from PDF/Office documents. The
// extraction engine is a collaborator; the default rejects every document so
// the classification boundary stays testable without one.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// ReadFileForAI classifies a file by extension and converts it to message
// content: images become base64 inline data, documents go through the
// extractor, allow-listed text files are read and truncated past the size
// cap, everything else is rejected.
func ReadFileForAI(path string, extractor TextExtractor) (*FileContent, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case imageTypes[ext] != "":
		return readImage(path, imageTypes[ext])
	case documentTypes[ext]:
		if extractor == nil {
			return nil, fmt.Errorf("no text extractor available for %s", ext)
		}
		text, err := extractor.Extract(path)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", path, err)
		}
		return &FileContent{Kind: KindDocument, Text: truncate(text)}, nil
	case textTypes[ext]:
		return readText(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func readImage(path, mediaType string) (*FileContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() > MaxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", info.Size(), MaxImageSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &FileContent{
		Kind: KindImage,
		Image: &message.ImageData{
			MediaType: mediaType,
			Data:      base64.StdEncoding.EncodeToString(data),
			FileName:  filepath.Base(path),
			Size:      len(data),
		},
	}, nil
}

func readText(path string) (*FileContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &FileContent{Kind: KindText, Text: truncate(string(data))}, nil
}

// truncate caps text at MaxTextSize without splitting a UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= MaxTextSize {
		return s
	}
	cut := MaxTextSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
