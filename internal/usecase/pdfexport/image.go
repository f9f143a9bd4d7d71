package pdfexport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"safetyportal/internal/errs"
)

// maxImageEdge bounds the longest side of an embedded image, in pixels.
const maxImageEdge = 1600

// embeddable lists the formats the PDF writer reads natively.
var embeddable = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPG",
	"image/gif":  "GIF",
}

// EncodeDataURI renders bytes as "data:<mime>;base64,<payload>".
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its content type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data uri has no payload")
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if !strings.EqualFold(encoding, "base64") {
		return "", nil, fmt.Errorf("data uri encoding %q is not base64", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errs.Wrap(err, "decode data uri")
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return strings.ToLower(mime), data, nil
}

// normalizeImage returns bytes the PDF writer can embed. Small PNG, JPEG and
// GIF pass through; WebP and oversized images are re-encoded as PNG.
func normalizeImage(mime string, data []byte) (string, []byte, error) {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		mime = detected
	}
	if _, ok := embeddable[mime]; ok {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return "", nil, errs.Wrap(err, "read image header")
		}
		if cfg.Width <= maxImageEdge && cfg.Height <= maxImageEdge {
			return mime, data, nil
		}
	}

	img, err := decodeImage(data)
	if err != nil {
		return "", nil, err
	}
	img = fitImage(img, maxImageEdge)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, errs.Wrap(err, "encode png")
	}
	return "image/png", buf.Bytes(), nil
}

func decodeImage(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}
	if decoded, webpErr := webp.Decode(bytes.NewReader(raw)); webpErr == nil {
		return decoded, nil
	}
	return nil, errs.Wrap(err, "decode image")
}

func fitImage(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
