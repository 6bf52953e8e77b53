// Package syncclient talks to the inspection backend, the system of record
// for stage drafts. A missing remote record is a normal outcome, not an
// error; only transport-level failures surface as errors, and callers fall
// back to the local draft store when they do.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
)

const (
	fetchPath = "/inspection/get"
	savePath  = "/inspection/save"

	defaultTimeout = 30 * time.Second
)

// ErrUnavailable wraps any transport-level failure: connection errors,
// malformed payloads, and 5xx responses. It deliberately excludes the
// not-found case, which FetchOne reports as Found=false.
var ErrUnavailable = errors.New("syncclient: backend unavailable")

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client implements draft.SyncClient against the inspection backend.
type Client struct {
	baseURL    string
	reg        *schema.Registry
	httpClient *http.Client
	logger     *slog.Logger
}

var _ draft.SyncClient = (*Client)(nil)

// New creates a client for the backend at baseURL.
func New(baseURL string, reg *schema.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		reg:        reg,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fetchEnvelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

type saveEnvelope struct {
	Success   bool           `json:"success"`
	Operation string         `json:"operation"`
	Data      map[string]any `json:"data"`
}

// FetchOne reads the remote draft for (requestID, stageID). A 404-class
// response, success:false, or a null data payload all mean "no remote draft
// yet, create on first save" and return Found=false with a nil error.
func (c *Client) FetchOne(ctx context.Context, requestID, stageID string) (draft.RemoteFetch, error) {
	stage, ok := c.reg.Stage(stageID)
	if !ok {
		return draft.RemoteFetch{}, fmt.Errorf("syncclient: unknown stage %q", stageID)
	}

	q := url.Values{}
	q.Set("reqId", requestID)
	q.Set("tableName", stageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fetchPath+"?"+q.Encode(), nil)
	if err != nil {
		return draft.RemoteFetch{}, fmt.Errorf("syncclient: build fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fetch transport failure", "stage", stageID, "request", requestID, "error", err)
		return draft.RemoteFetch{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return draft.RemoteFetch{Found: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("fetch rejected", "stage", stageID, "status", resp.StatusCode)
		return draft.RemoteFetch{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return draft.RemoteFetch{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	var envelope fetchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return draft.RemoteFetch{}, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	if !envelope.Success || envelope.Data == nil {
		return draft.RemoteFetch{Found: false}, nil
	}

	codec := draft.NewCodec(stage)
	return draft.RemoteFetch{Found: true, Values: codec.DecodeRecord(envelope.Data)}, nil
}

// SaveOne upserts the stage record remotely. Stages carrying image-list
// fields go up as multipart bodies: attachments already hosted remotely are
// re-referenced as <field>Url_<index> string parts, pending local files are
// streamed as binary parts. Everything else is a JSON body.
func (c *Client) SaveOne(ctx context.Context, requestID, stageID string, values map[string]any) (draft.RemoteSave, error) {
	stage, ok := c.reg.Stage(stageID)
	if !ok {
		return draft.RemoteSave{}, fmt.Errorf("syncclient: unknown stage %q", stageID)
	}
	if requestID == "" {
		return draft.RemoteSave{}, fmt.Errorf("syncclient: request id is required")
	}

	codec := draft.NewCodec(stage)
	var (
		req *http.Request
		err error
	)
	if stage.HasAttachments() {
		req, err = c.buildMultipartSave(ctx, requestID, stage, codec, values)
	} else {
		req, err = c.buildJSONSave(ctx, requestID, stage, codec, values)
	}
	if err != nil {
		return draft.RemoteSave{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("save transport failure", "stage", stageID, "request", requestID, "error", err)
		return draft.RemoteSave{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return draft.RemoteSave{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return draft.RemoteSave{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope saveEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return draft.RemoteSave{}, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	if !envelope.Success {
		return draft.RemoteSave{}, fmt.Errorf("syncclient: backend rejected save for %s/%s", stageID, requestID)
	}

	op := draft.SaveOperation(envelope.Operation)
	if op != draft.OperationInsert && op != draft.OperationUpdate {
		return draft.RemoteSave{}, fmt.Errorf("syncclient: backend reported unknown operation %q", envelope.Operation)
	}

	var echoed map[string]any
	if envelope.Data != nil {
		echoed = codec.DecodeRecord(envelope.Data)
	}
	return draft.RemoteSave{Operation: op, Echoed: echoed}, nil
}

func (c *Client) buildJSONSave(ctx context.Context, requestID string, stage schema.StageDefinition, codec draft.Codec, values map[string]any) (*http.Request, error) {
	encoded, err := codec.EncodeRecord(values)
	if err != nil {
		return nil, fmt.Errorf("syncclient: encode save body: %w", err)
	}

	payload := make(map[string]any, len(encoded)+2)
	for k, v := range encoded {
		payload[k] = v
	}
	payload["reqId"] = requestID
	payload["tableName"] = stage.ID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("syncclient: marshal save body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+savePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("syncclient: build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) buildMultipartSave(ctx context.Context, requestID string, stage schema.StageDefinition, codec draft.Codec, values map[string]any) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("reqId", requestID); err != nil {
		return nil, fmt.Errorf("syncclient: write multipart field: %w", err)
	}
	if err := writer.WriteField("tableName", stage.ID); err != nil {
		return nil, fmt.Errorf("syncclient: write multipart field: %w", err)
	}

	for _, field := range stage.Fields {
		value, present := values[field.Key]
		if !present {
			continue
		}
		if field.Type == schema.TypeImageList {
			if err := writeAttachments(writer, field.Key, value); err != nil {
				return nil, err
			}
			continue
		}
		encoded, err := codec.EncodeValue(field.Key, value)
		if err != nil {
			return nil, fmt.Errorf("syncclient: encode multipart field %q: %w", field.Key, err)
		}
		if encoded == nil {
			continue
		}
		if err := writer.WriteField(field.Key, fmt.Sprint(encoded)); err != nil {
			return nil, fmt.Errorf("syncclient: write multipart field %q: %w", field.Key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("syncclient: finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+savePath, &buf)
	if err != nil {
		return nil, fmt.Errorf("syncclient: build save request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// writeAttachments splits an image list into already-remote references,
// re-sent as plain <key>Url_<index> string parts so the backend keeps the
// hosted file, and pending local files, streamed as binary parts.
func writeAttachments(writer *multipart.Writer, key string, value any) error {
	refs, ok := value.([]string)
	if !ok {
		return fmt.Errorf("syncclient: field %q: image list must be []string, got %T", key, value)
	}
	for i, ref := range refs {
		if IsRemoteRef(ref) {
			if err := writer.WriteField(fmt.Sprintf("%sUrl_%d", key, i), ref); err != nil {
				return fmt.Errorf("syncclient: write attachment reference: %w", err)
			}
			continue
		}
		path := strings.TrimPrefix(ref, "file://")
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("syncclient: open attachment %q: %w", ref, err)
		}
		part, err := writer.CreateFormFile(fmt.Sprintf("%s_%d", key, i), filepath.Base(path))
		if err != nil {
			file.Close()
			return fmt.Errorf("syncclient: create attachment part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			file.Close()
			return fmt.Errorf("syncclient: copy attachment %q: %w", ref, err)
		}
		file.Close()
	}
	return nil
}

// IsRemoteRef reports whether an attachment reference points at an
// already-hosted file rather than a pending local upload.
func IsRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
