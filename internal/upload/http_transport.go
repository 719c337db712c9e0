package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTransport posts the base64 payload as JSON to a remote upload
// endpoint and expects {"url": "..."} back.
type HTTPTransport struct {
	Endpoint string
	Headers  map[string]string
	Client   *http.Client
}

func NewHTTPTransport(endpoint string, headers map[string]string) *HTTPTransport {
	return &HTTPTransport{
		Endpoint: strings.TrimSpace(endpoint),
		Headers:  headers,
		Client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type httpUploadBody struct {
	UploadID    string            `json:"uploadId"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"contentType"`
	Size        int64             `json:"size"`
	Data        string            `json:"data"`
	Params      map[string]string `json:"params,omitempty"`
}

type httpUploadReply struct {
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (Response, error) {
	if t == nil || t.Endpoint == "" {
		return Response{}, fmt.Errorf("http transport endpoint is required")
	}
	body, err := json.Marshal(httpUploadBody{
		UploadID:    req.UploadID,
		Filename:    req.Payload.Name,
		ContentType: req.Payload.ContentType,
		Size:        req.Payload.Size(),
		Data:        req.Payload.Base64(),
		Params:      req.Params,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode upload body: %w", err)
	}

	total := req.Payload.Size()
	counter := &progressReader{r: bytes.NewReader(body), report: func(n int64) {
		// The body is the base64 expansion of the payload; scale back to file bytes.
		sent := n * total / int64(len(body))
		req.progress(sent)
	}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, counter)
	if err != nil {
		return Response{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read upload response: %w", err)
	}
	var reply httpUploadReply
	decodeErr := json.Unmarshal(raw, &reply)
	if reply.Error != nil && strings.TrimSpace(reply.Error.Message) != "" {
		return Response{}, fmt.Errorf("upload rejected: %s", reply.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, fmt.Errorf("upload endpoint returned %s", resp.Status)
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("decode upload response: %w", decodeErr)
	}
	return Response{Locator: reply.URL}, nil
}

type progressReader struct {
	r      io.Reader
	n      int64
	report func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.n += int64(n)
		p.report(p.n)
	}
	return n, err
}
