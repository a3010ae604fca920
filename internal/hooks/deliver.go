package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"archivecore.io/core/internal/domain"
)

// Payload is what every deliverer receives for one hook fire.
type Payload struct {
	Event     domain.HookEvent
	ObjectKey string
	Data      map[string]interface{}
	Metadata  map[string]string
}

// Deliverer executes one hook's delivery mechanism and returns a
// short response description for the execution record.
type Deliverer interface {
	Deliver(ctx context.Context, reg domain.HookRegistration, p Payload) (response string, err error)
}

// WebhookDeliverer POSTs the payload as JSON, retrying up to the
// registration's RetryCount with exponential backoff via
// go-retryablehttp — a dependency the teacher's go.mod already
// carries transitively; here it is wired directly for the one
// component in the system that actually needs HTTP retry-with-backoff
// (§4.7 Retries).
type WebhookDeliverer struct{}

func (WebhookDeliverer) Deliver(ctx context.Context, reg domain.HookRegistration, p Payload) (string, error) {
	body, err := json.Marshal(struct {
		Event     domain.HookEvent      `json:"event"`
		ObjectKey string                 `json:"object_key,omitempty"`
		Data      map[string]interface{} `json:"data"`
		Metadata  map[string]string      `json:"metadata,omitempty"`
	}{Event: p.Event, ObjectKey: p.ObjectKey, Data: p.Data, Metadata: p.Metadata})
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	method := reg.Delivery.Method
	if method == "" {
		method = http.MethodPost
	}
	timeout := reg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = reg.RetryCount
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, method, reg.Delivery.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range reg.Delivery.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return string(respBody), fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return string(respBody), nil
}

// CallbackFunc is an in-process hook handler.
type CallbackFunc func(ctx context.Context, p Payload) error

// CallbackDeliverer invokes a registered in-process function. A panic
// or error never propagates to the emitter: it is caught and reported
// back to the dispatcher as a failed execution only (§4.7 Retries).
type CallbackDeliverer struct {
	Handlers map[string]CallbackFunc
}

func (d CallbackDeliverer) Deliver(ctx context.Context, reg domain.HookRegistration, p Payload) (response string, err error) {
	fn, ok := d.Handlers[reg.Name]
	if !ok {
		return "", fmt.Errorf("no callback registered for hook %q", reg.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	if err := fn(ctx, p); err != nil {
		return "", err
	}
	return "ok", nil
}

// FileLogDeliverer appends one line per delivery to a file, as JSON or
// plain text depending on the registration's format (§4.7 Delivery).
type FileLogDeliverer struct {
	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileLogDeliverer returns a deliverer that lazily opens and keeps
// append-mode file handles per path.
func NewFileLogDeliverer() *FileLogDeliverer {
	return &FileLogDeliverer{files: map[string]*os.File{}}
}

func (d *FileLogDeliverer) Deliver(_ context.Context, reg domain.HookRegistration, p Payload) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.files[reg.Delivery.FilePath]
	if !ok {
		var err error
		f, err = os.OpenFile(reg.Delivery.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("open hook log file: %w", err)
		}
		d.files[reg.Delivery.FilePath] = f
	}

	var line string
	if reg.Delivery.Format == "text" {
		line = fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339), p.Event, p.ObjectKey)
	} else {
		encoded, err := json.Marshal(struct {
			Time      string                 `json:"time"`
			Event     domain.HookEvent      `json:"event"`
			ObjectKey string                 `json:"object_key,omitempty"`
			Data      map[string]interface{} `json:"data"`
		}{Time: time.Now().UTC().Format(time.RFC3339), Event: p.Event, ObjectKey: p.ObjectKey, Data: p.Data})
		if err != nil {
			return "", fmt.Errorf("marshal file-log line: %w", err)
		}
		line = string(encoded) + "\n"
	}

	if _, err := f.WriteString(line); err != nil {
		return "", fmt.Errorf("write hook log line: %w", err)
	}
	return "written", nil
}

// Close releases every open file handle.
func (d *FileLogDeliverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for _, f := range d.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
