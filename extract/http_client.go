package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// HTTPClient talks to an external extraction service over HTTP. The
// service exposes /v1/embed-image, /v1/embed-text and /v1/tag-image
// endpoints returning JSON.
type HTTPClient struct {
	baseURL string
	apiKey  string
	dim     int
	client  *http.Client
	limiter *rate.Limiter
}

var (
	_ Embedder = (*HTTPClient)(nil)
	_ Tagger   = (*HTTPClient)(nil)
)

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	// APIKey, if set, is sent as a bearer token.
	APIKey string
	// HTTPClient overrides the default http.Client.
	HTTPClient *http.Client
	// RequestsPerSecond throttles outbound calls. Zero disables
	// throttling.
	RequestsPerSecond float64
}

// NewHTTPClient creates a client for the extraction service at baseURL.
// dimension is the vector size the service is expected to return; any
// mismatch is reported as ErrEmbeddingFailed.
func NewHTTPClient(baseURL string, dimension int, optFns ...func(o *HTTPClientOptions)) *HTTPClient {
	opts := HTTPClientOptions{
		HTTPClient: http.DefaultClient,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		dim:     dimension,
		client:  opts.HTTPClient,
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return c
}

// Dimension returns the expected vector size.
func (c *HTTPClient) Dimension() int {
	return c.dim
}

type embedImageRequest struct {
	Image string `json:"image"` // base64-encoded
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagResponse struct {
	Tags []string `json:"tags"`
}

// EmbedImage embeds raw image bytes via the extraction service.
func (c *HTTPClient) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	payload := embedImageRequest{Image: base64.StdEncoding.EncodeToString(image)}

	var resp embedResponse
	if err := c.post(ctx, "/v1/embed-image", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return c.validate(resp.Embedding)
}

// EmbedText embeds a text query via the extraction service.
func (c *HTTPClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, "/v1/embed-text", embedTextRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return c.validate(resp.Embedding)
}

// TagImage derives tags from an image via the extraction service.
func (c *HTTPClient) TagImage(ctx context.Context, image []byte) ([]string, error) {
	payload := embedImageRequest{Image: base64.StdEncoding.EncodeToString(image)}

	var resp tagResponse
	if err := c.post(ctx, "/v1/tag-image", payload, &resp); err != nil {
		return nil, err
	}

	return resp.Tags, nil
}

func (c *HTTPClient) validate(vec []float32) ([]float32, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("%w: embedding has size %d, expected %d", ErrEmbeddingFailed, len(vec), c.dim)
	}

	return vec, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
