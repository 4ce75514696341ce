package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/xidis/fabdeploy/pkg/engine"
)

// httpAPI is the shared JSON transport behind the aggregator and Opus
// clients. Both control planes live on the aggregator host and speak
// the same conventions: bearer auth, JSON bodies, 404 for absence.
type httpAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// newHTTPAPI builds a transport for a control-plane address. The
// address comes from the fabric document as host:port;
// credentialsRef names the environment variable holding the bearer
// token, empty for unauthenticated endpoints.
func newHTTPAPI(address, credentialsRef string) *httpAPI {
	base := address
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	var token string
	if credentialsRef != "" {
		token = os.Getenv(credentialsRef)
	}
	return &httpAPI{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do issues a request and decodes the JSON response into out (when
// non-nil). Returns found=false for 404 so callers can treat absence
// as a state, not an error.
func (a *httpAPI) do(ctx context.Context, method, path string, body, out any) (found bool, err error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, classifyHTTPError(method+" "+path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return true, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return true, nil
}

// classifyHTTPError maps transport-level timeouts onto the retryable
// timeout class. Connection refusals and the like stay terminal.
func classifyHTTPError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTimeoutError(op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return engine.NewTimeoutError(op, err)
	}
	return err
}
