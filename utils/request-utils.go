package utils

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxUploadSize bounds the in-memory part of a multipart upload.
const MaxUploadSize = 64 << 20

var ErrMissingFile = errors.New("multipart form has no file")

// MultipartResult holds an uploaded GeoJSON file and the JSON encoded form
// fields that travel with it. Absent fields stay empty.
type MultipartResult struct {
	File       []byte
	Properties Properties
}

type Properties struct {
	Rules   string
	Options string
	Errors  string
}

// ReadMultiPartForm reads the file stored under fileKey together with the
// "rules", "options" and "errors" fields.
func ReadMultiPartForm(r *http.Request, fileKey string) (MultipartResult, error) {
	var result MultipartResult

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return result, fmt.Errorf("parse multipart form: %w", err)
	}

	for key, value := range r.MultipartForm.Value {
		if len(value) == 0 {
			continue
		}
		switch key {
		case "rules":
			result.Properties.Rules = value[0]
		case "options":
			result.Properties.Options = value[0]
		case "errors":
			result.Properties.Errors = value[0]
		}
	}

	headers := r.MultipartForm.File[fileKey]
	if len(headers) == 0 {
		return result, fmt.Errorf("%w: %q", ErrMissingFile, fileKey)
	}

	file, err := headers[0].Open()
	if err != nil {
		return result, fmt.Errorf("open %s: %w", headers[0].Filename, err)
	}
	defer file.Close()

	result.File, err = io.ReadAll(file)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", headers[0].Filename, err)
	}

	return result, nil
}

// IsMultipart reports whether r carries a multipart/form-data body.
func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
