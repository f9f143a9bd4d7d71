package report

import (
	"strings"
)

type ImageKind int

const (
	ImageKindNone ImageKind = iota
	ImageKindDataURI
	ImageKindURL
	ImageKindStorageKey
)

func (k ImageKind) String() string {
	switch k {
	case ImageKindDataURI:
		return "data-uri"
	case ImageKindURL:
		return "url"
	case ImageKindStorageKey:
		return "storage-key"
	default:
		return "none"
	}
}

// ClassifyImageRef decides how an image reference is turned into bytes:
// embedded literal, absolute address, or a key relative to a bucket.
func ClassifyImageRef(ref string) ImageKind {
	trimmed := strings.TrimSpace(ref)
	lower := strings.ToLower(trimmed)
	switch {
	case trimmed == "":
		return ImageKindNone
	case strings.HasPrefix(lower, "data:"):
		return ImageKindDataURI
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ImageKindURL
	default:
		return ImageKindStorageKey
	}
}

// PublicObjectURL builds "<base>/storage/v1/object/public/<bucket>/<key>".
func PublicObjectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/storage/v1/object/public/" + bucket + "/" + strings.TrimLeft(key, "/")
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageExtension picks the object key extension from the content type, then
// from the original file name.
func ImageExtension(contentType, fileName string) string {
	if ext, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]; ok {
		return ext
	}
	if idx := strings.LastIndex(fileName, "."); idx >= 0 && idx < len(fileName)-1 {
		return strings.ToLower(fileName[idx:])
	}
	return ""
}

func IsSupportedImageType(contentType string) bool {
	_, ok := imageExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}
