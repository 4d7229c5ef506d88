package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionForMimeType(t *testing.T) {
	tests := []struct {
		mimeType string
		expected string
	}{
		{"image/jpeg", ".jpg"},
		{"image/jpg", ".jpg"},
		{"IMAGE/JPEG; charset=binary", ".jpg"},
		{"video/mp4", ".mp4"},
		{"audio/mpeg", ".mp3"},
		{"audio/ogg; codecs=opus", ".ogg"},
		{"application/pdf", ".pdf"},
		{"application/octet-stream", ".octet-stream"},
		{"image/x-icon", ".x-icon"},
		{"application/ld+json", ".ld+json"},
		{"image/../../etc", ".etc"},
		{"image/", ".bin"},
		{"garbage", ".bin"},
		{"", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtensionForMimeType(tt.mimeType))
		})
	}
}

func TestMimeTypeForExtension(t *testing.T) {
	assert.Equal(t, "image/jpeg", MimeTypeForExtension(".jpg"))
	assert.Equal(t, "image/jpeg", MimeTypeForExtension(".JPG"))
	assert.Equal(t, "video/quicktime", MimeTypeForExtension(".mov"))
	assert.Equal(t, DefaultMimeType, MimeTypeForExtension(".octet-stream"))
	assert.Equal(t, DefaultMimeType, MimeTypeForExtension(""))
}

func TestMimeTable_RoundTrip(t *testing.T) {
	for mimeType, ext := range MimeTypeToExtension {
		served := MimeTypeForExtension(ExtensionForMimeType(mimeType))
		assert.Equal(t, ext, MimeTypeToExtension[served], "mime %s served as %s", mimeType, served)
	}
}

func TestExtensionTable_Complete(t *testing.T) {
	for mimeType, ext := range MimeTypeToExtension {
		_, ok := ExtensionToMimeType[ext]
		assert.True(t, ok, "extension %s for %s has no serving type", ext, mimeType)
	}
}
