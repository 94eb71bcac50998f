package translate

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// DefaultMyMemoryEndpoint is the public MyMemory API base URL.
const DefaultMyMemoryEndpoint = "https://api.mymemory.translated.net"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MyMemoryConfig configures the MyMemory client.
type MyMemoryConfig struct {
	// Endpoint is the API base URL. Empty selects DefaultMyMemoryEndpoint.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Email raises the anonymous daily quota when set ("de" parameter).
	Email string `json:"email" yaml:"email"`
	// Timeout bounds each request. Zero selects 15s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// MyMemory is a Translator backed by the MyMemory GET /get endpoint.
type MyMemory struct {
	endpoint string
	email    string
	client   *http.Client
}

// NewMyMemory creates a MyMemory client.
//
// Arguments:
//   - cfg: Endpoint, quota e-mail and timeout.
//   - client: The HTTP client to use. Nil creates one with cfg.Timeout.
//
// Returns:
//   - *MyMemory: The client.
func NewMyMemory(cfg MyMemoryConfig, client *http.Client) *MyMemory {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMyMemoryEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &MyMemory{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		email:    cfg.Email,
		client:   client,
	}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  flexibleStatus `json:"responseStatus"`
	ResponseDetails string         `json:"responseDetails"`
}

// flexibleStatus accepts MyMemory's responseStatus, which is a number on
// success and sometimes a quoted string on quota or validation errors.
type flexibleStatus int

func (s *flexibleStatus) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.Errorf("invalid responseStatus %s", b)
	}
	*s = flexibleStatus(n)
	return nil
}

// Translate implements Translator. Empty or whitespace-only text returns ""
// without a network call. Every failure is a *TranslationError.
func (m *MyMemory) Translate(ctx context.Context, text string, pair LangPair) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	fail := func(status int, err error) (string, error) {
		return "", &TranslationError{Pair: pair, StatusCode: status, Err: err}
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", pair.String())
	if m.email != "" {
		q.Set("de", m.email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/get?"+q.Encode(), nil)
	if err != nil {
		return fail(0, errors.Wrap(err, "build request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fail(0, errors.Wrap(err, "request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail(resp.StatusCode, errors.Wrap(err, "read response"))
	}
	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, errors.Errorf("unexpected http status %s", resp.Status))
	}

	var out myMemoryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fail(resp.StatusCode, errors.Wrap(err, "decode response"))
	}
	if status := int(out.ResponseStatus); status != http.StatusOK {
		return fail(status, errors.Errorf("service status %d: %s", status, out.ResponseDetails))
	}
	return out.ResponseData.TranslatedText, nil
}
