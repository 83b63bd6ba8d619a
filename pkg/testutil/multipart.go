package testutil

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// File is one file part of a multipart body.
type File struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartBody encodes files and form fields and returns the body with its
// content type. Fields are written before files.
func MultipartBody(t *testing.T, fields map[string]string, files ...File) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// NewMultipartRequest builds a multipart/form-data request.
func NewMultipartRequest(t *testing.T, method, path string, fields map[string]string, files ...File) *http.Request {
	t.Helper()
	body, contentType := MultipartBody(t, fields, files...)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// PNG is a minimal PNG header, enough for content sniffing.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
