package httpbinding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
)

// maxBodySize bounds a response body read into memory (4MB).
const maxBodySize = 4 << 20

const contentTypeJSON = "application/json"

// response is a completed exchange with a 2xx status.
type response struct {
	status int
	header http.Header
	body   []byte
	url    string
}

// do sends one request. A nil body sends no payload. Network errors and
// non-2xx statuses are reported as binding.ErrTransport.
func do(ctx context.Context, client *http.Client, method, url string, body any) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %w", binding.ErrParse, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", binding.ErrTransport, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", binding.ErrTransport, method, url, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", binding.ErrTransport, url, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d", binding.ErrTransport, method, url, res.StatusCode)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%w: %w: %s exceeds %d bytes", binding.ErrParse, binding.ErrBodyTooLarge, url, maxBodySize)
	}

	return &response{status: res.StatusCode, header: res.Header, body: data, url: url}, nil
}

// decode parses a JSON body. Empty bodies are a parse failure.
func decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", binding.ErrParse)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", binding.ErrParse, err)
	}
	return v, nil
}

// method returns the form's htv:methodName, or def.
func method(override, def string) string {
	if override != "" {
		return override
	}
	return def
}
