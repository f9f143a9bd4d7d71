package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"safetyportal/internal/errs"
	"safetyportal/internal/usecase/reportform"
)

// payloadField is the multipart field holding the JSON document.
const payloadField = "report"

// readPayload decodes the request's JSON document into dst. Multipart
// requests carry it in the "report" field next to image files; any other
// request body is the document itself. The returned form is nil for plain
// JSON requests.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, dst any) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, errs.Wrapf(errMalformed, "decode json body: %v", err)
		}
		return nil, nil
	}

	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		return nil, errs.Wrapf(errMalformed, "parse multipart form: %v", err)
	}
	raw := r.MultipartForm.Value[payloadField]
	if len(raw) == 0 {
		return nil, errs.Wrapf(errMalformed, "multipart field %q is required", payloadField)
	}
	if err := json.Unmarshal([]byte(raw[0]), dst); err != nil {
		return nil, errs.Wrapf(errMalformed, "decode %q field: %v", payloadField, err)
	}
	return r.MultipartForm, nil
}

// uploadFrom reads the named file part, or returns nil when it is absent.
func uploadFrom(form *multipart.Form, name string) (*reportform.Upload, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[name]
	if len(headers) == 0 {
		return nil, nil
	}
	header := headers[0]
	f, err := header.Open()
	if err != nil {
		return nil, errs.Wrapf(errMalformed, "open %s: %v", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrapf(errMalformed, "read %s: %v", name, err)
	}
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &reportform.Upload{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
