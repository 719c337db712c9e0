package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"strings"
)

// File is a host-provided handle to one user-selected file.
type File interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// BytesFile is an in-memory File.
type BytesFile struct {
	FileName string
	MimeType string
	Data     []byte
}

func NewBytesFile(name, contentType string, data []byte) *BytesFile {
	return &BytesFile{FileName: name, MimeType: contentType, Data: data}
}

func (f *BytesFile) Name() string        { return f.FileName }
func (f *BytesFile) ContentType() string { return f.MimeType }
func (f *BytesFile) Size() int64         { return int64(len(f.Data)) }

func (f *BytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// MultipartFile adapts a file part of a multipart form.
type MultipartFile struct {
	Header *multipart.FileHeader
}

func (f MultipartFile) Name() string { return f.Header.Filename }

func (f MultipartFile) ContentType() string {
	return strings.TrimSpace(f.Header.Header.Get("Content-Type"))
}

func (f MultipartFile) Size() int64 { return f.Header.Size }

func (f MultipartFile) Open() (io.ReadCloser, error) {
	return f.Header.Open()
}
