package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Payload is a file read fully into memory.
type Payload struct {
	Name        string
	ContentType string
	Data        []byte
}

func (p Payload) Size() int64 { return int64(len(p.Data)) }

func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURL renders the payload as an inline data: URL.
func (p Payload) DataURL() string {
	return "data:" + p.ContentType + ";base64," + p.Base64()
}

// readPayload performs the single full read of file. maxBytes <= 0 means
// no limit.
func readPayload(ctx context.Context, file File, maxBytes int64) (Payload, error) {
	if file == nil {
		return Payload{}, readError(fmt.Errorf("file is nil"))
	}
	if maxBytes > 0 && file.Size() > maxBytes {
		return Payload{}, readError(fmt.Errorf("file %q is %d bytes, limit is %d", file.Name(), file.Size(), maxBytes))
	}
	rc, err := file.Open()
	if err != nil {
		return Payload{}, readError(fmt.Errorf("open %q: %w", file.Name(), err))
	}
	var closeOnce sync.Once
	closeFile := func() { closeOnce.Do(func() { _ = rc.Close() }) }
	defer closeFile()

	var r io.Reader = rc
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(r)
		done <- readResult{data: data, err: err}
	}()

	var data []byte
	select {
	case <-ctx.Done():
		// Closing the file unblocks the pending read.
		closeFile()
		return Payload{}, readError(ctx.Err())
	case res := <-done:
		if res.err != nil {
			if ctx.Err() != nil {
				return Payload{}, readError(ctx.Err())
			}
			return Payload{}, readError(fmt.Errorf("read %q: %w", file.Name(), res.err))
		}
		data = res.data
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Payload{}, readError(fmt.Errorf("file %q exceeds %d bytes", file.Name(), maxBytes))
	}

	contentType := strings.TrimSpace(file.ContentType())
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return Payload{
		Name:        file.Name(),
		ContentType: contentType,
		Data:        data,
	}, nil
}
