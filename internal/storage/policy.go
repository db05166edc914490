package storage

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ImportPolicy constrains uploaded pipeline definitions
type ImportPolicy struct {
	MaxFileMB  float64
	MimeTypes  []string
	Extensions []string
}

// DefaultImportPolicy accepts YAML files up to maxFileMB
func DefaultImportPolicy(maxFileMB float64) *ImportPolicy {
	return &ImportPolicy{
		MaxFileMB: maxFileMB,
		MimeTypes: []string{
			"application/yaml",
			"application/x-yaml",
			"text/yaml",
			"text/x-yaml",
			"text/plain",
			"application/octet-stream",
		},
		Extensions: []string{"yml", "yaml"},
	}
}

// MaxBytes returns the size limit in bytes, or 0 when unlimited
func (p *ImportPolicy) MaxBytes() int64 {
	if p == nil || p.MaxFileMB <= 0 {
		return 0
	}
	return int64(p.MaxFileMB * 1024 * 1024)
}

// ValidateFile validates an upload against the policy. An empty file name or
// content type skips the corresponding check.
func (p *ImportPolicy) ValidateFile(fileName, contentType string, fileSizeBytes int64) error {
	if p == nil {
		return nil // No policy means no restrictions
	}

	if maxBytes := p.MaxBytes(); maxBytes > 0 && fileSizeBytes > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds maximum %d bytes (%.2f MB)",
			fileSizeBytes, maxBytes, p.MaxFileMB)
	}

	if contentType != "" && len(p.MimeTypes) > 0 && !p.matchesMimeType(contentType) {
		return fmt.Errorf("content type %s is not allowed. Allowed types: %v",
			contentType, p.MimeTypes)
	}

	if fileName != "" && len(p.Extensions) > 0 && !p.matchesExtension(fileName) {
		return fmt.Errorf("file extension is not allowed. Allowed extensions: %v",
			p.Extensions)
	}

	return nil
}

// matchesMimeType checks if contentType matches any of the allowed MIME type patterns
func (p *ImportPolicy) matchesMimeType(contentType string) bool {
	// Parse the content type (handle parameters like "text/yaml; charset=utf-8")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		// Support wildcard patterns like "text/*"
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "/*")
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}

func (p *ImportPolicy) matchesExtension(fileName string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" {
		return false
	}

	for _, allowed := range p.Extensions {
		if ext == strings.TrimPrefix(strings.ToLower(allowed), ".") {
			return true
		}
	}
	return false
}
