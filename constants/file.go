package constants

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Media kinds recognised by the extraction engine.
const (
	IMAGE = "IMAGE"
	PDF   = "PDF"
	OTHER = "OTHER"
)

// MaxVisionMBDefault caps inline payloads sent to the vision provider.
const MaxVisionMBDefault = 15

var extMediaTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeFromPath infers a MIME type from the file extension.
func MediaTypeFromPath(path string) string {
	ext := NormalizeExt(filepath.Ext(path))
	if mt, ok := extMediaTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// KindOf classifies a MIME type into IMAGE, PDF or OTHER.
func KindOf(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	case mt == "application/pdf":
		return PDF
	default:
		return OTHER
	}
}

// DocumentKind names a generated legal document.
type DocumentKind string

const (
	DocPetition    DocumentKind = "peticao_inicial"
	DocDeclaration DocumentKind = "termo_declaracao"
)

// DocxMediaType is the content type used when uploading generated documents.
const DocxMediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ParseDocumentKind accepts the canonical kind names.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(strings.ToLower(strings.TrimSpace(s))) {
	case DocPetition:
		return DocPetition, nil
	case DocDeclaration:
		return DocDeclaration, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// DocumentKey returns the canonical storage key of a generated document:
// {protocol}/{kind}_{protocol}.docx
func DocumentKey(protocol string, kind DocumentKind) string {
	return fmt.Sprintf("%s/%s_%s.docx", protocol, kind, protocol)
}

// ComplementaryKey returns the storage key for a document delivered after intake.
func ComplementaryKey(protocol, id, name string) string {
	name = strings.ReplaceAll(filepath.Base(name), " ", "_")
	return fmt.Sprintf("%s/complementares/%s_%s", protocol, id, name)
}
