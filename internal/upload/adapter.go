// Package upload turns a user-selected file into a durable resource
// locator through a cancellable, single-shot upload lifecycle.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Status is the lifecycle state of an upload task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusAborted
}

// Task is a point-in-time view of an adapter's upload.
type Task struct {
	ID            string
	FileName      string
	Status        Status
	TotalBytes    int64
	ProgressBytes int64
	ResultLocator string
	Err           error
}

// Result is what a successful upload resolves to.
type Result struct {
	Locator string `json:"url"`
}

// Config holds per-factory settings shared by every adapter it creates.
type Config struct {
	// MaxBytes rejects larger files with a read failure. Zero disables.
	MaxBytes int64
	// Params are forwarded to the transport with every request.
	Params map[string]string
	// Limiter, when set, gates transport sends across all adapters.
	Limiter *rate.Limiter
}

// Instance is the capability set the host holds for one file.
type Instance interface {
	Upload(ctx context.Context) (Result, error)
	Abort()
}

// Adapter drives one file through pending -> uploading -> done|failed|aborted.
// Upload may be called once; Abort may be called any number of times from
// any goroutine.
type Adapter struct {
	file      File
	transport Transport
	cfg       Config

	mu      sync.Mutex
	task    Task
	started bool
	cancel  context.CancelFunc
}

var _ Instance = (*Adapter)(nil)

func New(file File, transport Transport, cfg Config) *Adapter {
	return NewWithID(uuid.NewString(), file, transport, cfg)
}

// NewWithID is New with a caller-chosen task ID, so a client can address
// the upload before it settles. An empty id gets a generated one.
func NewWithID(id string, file File, transport Transport, cfg Config) *Adapter {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	name := ""
	if file != nil {
		name = file.Name()
	}
	return &Adapter{
		file:      file,
		transport: transport,
		cfg:       cfg,
		task: Task{
			ID:       id,
			FileName: name,
			Status:   StatusPending,
		},
	}
}

func (a *Adapter) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.task.ID
}

// Task returns a snapshot of the current task state.
func (a *Adapter) Task() Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.task
}

// Read converts file into a transport payload with one full read.
func (a *Adapter) Read(ctx context.Context, file File) (Payload, error) {
	return readPayload(ctx, file, a.cfg.MaxBytes)
}

// Upload reads the file, sends it, and returns the resource locator. It
// settles exactly once: a cancelled upload never yields a locator.
func (a *Adapter) Upload(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return Result{}, ErrAlreadyStarted
	}
	a.started = true
	if a.task.Status == StatusAborted {
		a.mu.Unlock()
		return Result{}, ErrAborted
	}
	if a.transport == nil {
		a.mu.Unlock()
		return Result{}, a.settleErr(ctx, transportError(fmt.Errorf("transport is nil")))
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	payload, err := a.Read(ctx, a.file)
	if err != nil {
		return Result{}, a.settleErr(ctx, err)
	}
	if !a.transition(StatusPending, StatusUploading, payload.Size()) {
		return Result{}, ErrAborted
	}

	if a.cfg.Limiter != nil {
		if err := a.cfg.Limiter.Wait(ctx); err != nil {
			return Result{}, a.settleErr(ctx, transportError(err))
		}
	}

	resp, err := a.transport.Send(ctx, Request{
		UploadID:   a.ID(),
		Payload:    payload,
		Params:     a.cfg.Params,
		OnProgress: a.progress,
	})
	if err != nil {
		return Result{}, a.settleErr(ctx, transportError(err))
	}
	locator := strings.TrimSpace(resp.Locator)
	if locator == "" {
		return Result{}, a.settleErr(ctx, transportError(errors.New("transport returned an empty locator")))
	}
	res, err := a.settleDone(locator)
	if err != nil {
		a.discard(ctx, resp)
	}
	return res, err
}

// discard drops what a successful Send stored once the task settled as
// aborted anyway.
func (a *Adapter) discard(ctx context.Context, resp Response) {
	d, ok := a.transport.(Discarder)
	if !ok {
		return
	}
	_ = d.Discard(context.WithoutCancel(ctx), resp)
}

// Abort cancels an in-flight read or send. Calling it on a settled task
// has no effect; calling it before Upload prevents the upload.
func (a *Adapter) Abort() {
	a.mu.Lock()
	if a.task.Status.Terminal() {
		a.mu.Unlock()
		return
	}
	a.task.Status = StatusAborted
	a.task.Err = ErrAborted
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *Adapter) transition(from, to Status, total int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task.Status != from {
		return false
	}
	a.task.Status = to
	a.task.TotalBytes = total
	return true
}

func (a *Adapter) progress(sent int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task.Status != StatusUploading {
		return
	}
	if sent > a.task.ProgressBytes {
		a.task.ProgressBytes = sent
	}
}

// settleDone commits success unless an abort was recorded first.
func (a *Adapter) settleDone(locator string) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task.Status == StatusAborted {
		return Result{}, ErrAborted
	}
	a.task.Status = StatusDone
	a.task.ResultLocator = locator
	a.task.ProgressBytes = a.task.TotalBytes
	return Result{Locator: locator}, nil
}

// settleErr commits a failure. An abort recorded first wins, and a
// cancellation of the caller's context is reported as an abort as well.
func (a *Adapter) settleErr(ctx context.Context, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task.Status == StatusAborted {
		return ErrAborted
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		a.task.Status = StatusAborted
		a.task.Err = ErrAborted
		return ErrAborted
	}
	a.task.Status = StatusFailed
	a.task.Err = err
	return err
}

// Factory creates adapters bound to one transport and configuration. Its
// New method is the host's per-file registration hook.
type Factory struct {
	transport Transport
	cfg       Config
}

func NewFactory(transport Transport, cfg Config) *Factory {
	return &Factory{transport: transport, cfg: cfg}
}

func (f *Factory) New(file File) *Adapter {
	return New(file, f.transport, f.cfg)
}

func (f *Factory) NewWithID(id string, file File) *Adapter {
	return NewWithID(id, file, f.transport, f.cfg)
}
