// Package vision wraps the Gemini API for the two call shapes the pipeline
// needs: single-image detector calls that return a keyed JSON result, and
// direct multi-image calls built from ordered text/image blocks for the
// refiners.
package vision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Block is one ordered content piece of a model request: either prompt text
// or an encoded PNG image.
type Block struct {
	Text string
	PNG  []byte
}

// TextBlock builds a text block.
func TextBlock(s string) Block { return Block{Text: s} }

// ImageBlock builds an image block from PNG bytes.
func ImageBlock(png []byte) Block { return Block{PNG: png} }

// GenerateRequest describes one model invocation.
type GenerateRequest struct {
	Model           string
	Blocks          []Block
	MaxOutputTokens int32
	Temperature     float32
}

// Client calls the Gemini API. It is safe for concurrent use; the refinement
// phase fans out category tasks that share one client.
type Client struct {
	client *genai.Client
	log    *zap.Logger
}

// NewClient builds a Gemini-backed vision client.
func NewClient(ctx context.Context, apiKey string, log *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return &Client{client: client, log: log}, nil
}

// Generate sends the blocks to the model and returns the raw reply text.
// Transient failures are retried a few times with linear backoff; timeouts
// are the transport's concern, not enforced here.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if len(req.Blocks) == 0 {
		return "", fmt.Errorf("generate request has no content blocks")
	}

	parts := make([]*genai.Part, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		if b.PNG != nil {
			parts = append(parts, genai.NewPartFromBytes(b.PNG, "image/png"))
		} else {
			parts = append(parts, genai.NewPartFromText(b.Text))
		}
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
		if err != nil {
			lastErr = err
			c.log.Warn("model call failed",
				zap.Int("attempt", attempt),
				zap.String("model", req.Model),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}

		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty model response")
		}
		return text, nil
	}
	return "", fmt.Errorf("model call failed after retries: %w", lastErr)
}
