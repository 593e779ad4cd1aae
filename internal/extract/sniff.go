package extract

import (
	"bytes"
	"net/http"
	"strings"
)

var contentTypeFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/webp": "webp",
}

var extensionFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".gif":  "gif",
	".bmp":  "bmp",
	".webp": "webp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// sniffFormat identifies the image format from the leading bytes, falling
// back to the file extension when the content is not recognized.
func sniffFormat(head []byte, ext string) string {
	if bytes.HasPrefix(head, []byte("II*\x00")) || bytes.HasPrefix(head, []byte("MM\x00*")) {
		return "tiff"
	}
	if f, ok := contentTypeFormats[http.DetectContentType(head)]; ok {
		return f
	}
	return extensionFormats[strings.ToLower(ext)]
}
