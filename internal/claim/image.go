package claim

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
)

var allowedExtensions = map[string]string{
	".jpg":  MediaTypeJPEG,
	".jpeg": MediaTypeJPEG,
	".png":  MediaTypePNG,
}

// UploadedImage is a user supplied image waiting to be submitted. It is never persisted.
type UploadedImage struct {
	Filename  string
	MediaType string
	Data      []byte
}

// NewUploadedImage validates a selected file. The media type is sniffed from the content
// instead of trusting the multipart header, which browsers frequently leave empty or get wrong.
func NewUploadedImage(filename string, data []byte) (UploadedImage, error) {
	if len(data) == 0 {
		return UploadedImage{}, NewInvalidInput("Please select a file to upload.")
	}

	name := filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return UploadedImage{}, NewInvalidInput("Only JPG, JPEG and PNG images are accepted.")
	}

	detected := mimetype.Detect(data).String()
	switch detected {
	case MediaTypeJPEG, MediaTypePNG:
	default:
		return UploadedImage{}, NewInvalidInput("The selected file is not a readable JPEG or PNG image.")
	}

	return UploadedImage{Filename: name, MediaType: detected, Data: data}, nil
}

// Digest identifies the image content, used to spot repeated submissions.
func (i UploadedImage) Digest() string {
	sum := sha1.Sum(i.Data)
	return hex.EncodeToString(sum[:])
}

// Size is the image length in bytes.
func (i UploadedImage) Size() int {
	return len(i.Data)
}
