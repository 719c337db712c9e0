package upload

import "context"

// Request is what an adapter hands to its transport.
type Request struct {
	UploadID string
	Payload  Payload
	// Params are configuration-derived parameters forwarded verbatim.
	Params map[string]string
	// OnProgress, when set, receives the cumulative number of bytes sent.
	OnProgress func(sent int64)
}

func (r Request) progress(sent int64) {
	if r.OnProgress != nil {
		r.OnProgress(sent)
	}
}

// Response carries the locator of the stored resource. Ref is an optional
// transport-specific handle used by Discard.
type Response struct {
	Locator string
	Ref     string
}

// Transport sends one payload and returns where it can be fetched.
// Implementations must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Discarder is implemented by transports that leave a stored resource
// behind. Discard removes it when an abort won over a successful Send.
type Discarder interface {
	Discard(ctx context.Context, resp Response) error
}

// TransportFunc lets a plain function act as a Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

func (f TransportFunc) Send(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// DataURLTransport resolves uploads to inline data: URLs. Used when no
// durable store is configured.
type DataURLTransport struct{}

func (DataURLTransport) Send(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	req.progress(req.Payload.Size())
	return Response{Locator: req.Payload.DataURL()}, nil
}
