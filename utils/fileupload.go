package utils

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const (
	// MaxScanFileSize is 200MB in bytes; point-cloud exports run large
	MaxScanFileSize = 200 * 1024 * 1024
)

// allowedScanFormats are the accepted scan/model file extensions
var allowedScanFormats = map[string]bool{
	".e57": true,
	".las": true,
	".laz": true,
	".ply": true,
	".obj": true,
	".rcp": true,
	".zip": true,
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateScanFile validates the uploaded scan file format and size
func ValidateScanFile(fileHeader *multipart.FileHeader) error {
	// Check file size
	if fileHeader.Size > MaxScanFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxScanFileSize/(1024*1024)),
		}
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedScanFormats[ext] {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("File format %s is not supported. Allowed formats: %s", ext, AllowedScanFormatList()),
		}
	}

	return nil
}

// AllowedScanFormatList returns the accepted extensions as a comma-separated
// string for error messages
func AllowedScanFormatList() string {
	formats := []string{".e57", ".las", ".laz", ".ply", ".obj", ".rcp", ".zip"}
	return strings.Join(formats, ", ")
}
