package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"page-rag/internal/models"
)

// Client calls an OpenAI-compatible /v1/embeddings endpoint, one text per
// request. It makes a single attempt and sets no timeout of its own.
type Client struct {
	URL        string
	Token      string
	Model      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token, model string) *Client {
	endpoint := baseURL
	if !strings.HasSuffix(endpoint, "/v1/embeddings") {
		endpoint = strings.TrimRight(endpoint, "/") + "/v1/embeddings"
	}
	return &Client{
		URL:        endpoint,
		Token:      strings.TrimPrefix(token, "Bearer "),
		Model:      model,
		HTTPClient: &http.Client{},
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the first embedding the service reports for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: text, Model: c.Model})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", models.ErrEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", models.ErrEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", models.ErrEmbeddingFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", models.ErrEmbeddingFailed, err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("%w: response contained no data", models.ErrEmbeddingFailed)
	}
	return embResp.Data[0].Embedding, nil
}
