package constants

import "strings"

// MimeTypeToExtension maps MIME types to the extension used when a stored
// media file is named. Aliases map onto the same canonical extension.
var MimeTypeToExtension = map[string]string{
	// Image formats
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/heic":    ".heic",

	// Video formats
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"video/quicktime": ".mov",
	"video/mov":       ".mov",
	"video/webm":      ".webm",

	// Audio formats (WhatsApp voice notes arrive as audio/ogg)
	"audio/ogg":  ".ogg",
	"audio/mpeg": ".mp3",
	"audio/mp3":  ".mp3",
	"audio/mp4":  ".m4a",
	"audio/aac":  ".aac",
	"audio/amr":  ".amr",
	"audio/wav":  ".wav",

	// Document formats
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.ms-excel":                                                  ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-powerpoint":                                             ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/plain": ".txt",
}

// ExtensionToMimeType maps a stored file extension back to the Content-Type
// it is served with. Every extension produced by MimeTypeToExtension has an
// entry here.
var ExtensionToMimeType = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".heic": "image/heic",

	".mp4":  "video/mp4",
	".3gp":  "video/3gpp",
	".mov":  "video/quicktime",
	".webm": "video/webm",

	".ogg": "audio/ogg",
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",
	".aac": "audio/aac",
	".amr": "audio/amr",
	".wav": "audio/wav",

	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// DefaultMediaExtension is used when a MIME type has no subtype to derive one from
const DefaultMediaExtension = ".bin"

// DefaultAllowedMediaHosts are the hosts WhatsApp Cloud API media URLs are served from
var DefaultAllowedMediaHosts = []string{
	"fbcdn.net",
	"fbsbx.com",
	"facebook.com",
	"whatsapp.net",
	"graph.facebook.com",
	"lookaside.fbsbx.com",
}

// NormalizeMimeType lowercases a media type and strips its parameters.
// "Image/JPEG; charset=binary" becomes "image/jpeg".
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// ExtensionForMimeType returns the file extension used when storing media of
// the given type. Types missing from the table use "." + subtype, so
// application/octet-stream becomes ".octet-stream". Types without a usable
// subtype get DefaultMediaExtension.
func ExtensionForMimeType(mimeType string) string {
	normalized := NormalizeMimeType(mimeType)
	if ext, ok := MimeTypeToExtension[normalized]; ok {
		return ext
	}

	_, subtype, found := strings.Cut(normalized, "/")
	if !found {
		return DefaultMediaExtension
	}

	subtype = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '+', r == '.':
			return r
		}
		return -1
	}, subtype)
	subtype = strings.Trim(subtype, ".")
	if subtype == "" {
		return DefaultMediaExtension
	}

	return "." + subtype
}

// MimeTypeForExtension returns the Content-Type a stored file is served with
func MimeTypeForExtension(ext string) string {
	if mimeType, ok := ExtensionToMimeType[strings.ToLower(ext)]; ok {
		return mimeType
	}
	return DefaultMimeType
}
