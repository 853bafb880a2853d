package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/parse"
)

// Caller is the minimal model surface the detector needs; *Client satisfies
// it, tests substitute fakes.
type Caller interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Detector runs single-image detection prompts against the model and decodes
// the JSON reply. Extracting the expected result key is the caller's job: a
// reply without the key means "no results", not an error.
type Detector struct {
	caller Caller
	model  string
	log    *zap.Logger
}

// NewDetector builds a detector on top of a model caller.
func NewDetector(caller Caller, model string, log *zap.Logger) *Detector {
	return &Detector{caller: caller, model: model, log: log}
}

// Detect sends the prompt plus the image at imagePath to the model and
// returns the decoded top-level JSON object of the reply. Only transport and
// decode failures are errors.
func (d *Detector) Detect(ctx context.Context, imagePath, promptText string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read detector image: %w", err)
	}

	raw, err := d.caller.Generate(ctx, GenerateRequest{
		Model:           d.model,
		Blocks:          []Block{TextBlock(promptText), ImageBlock(data)},
		MaxOutputTokens: 4096,
		Temperature:     0,
	})
	if err != nil {
		return nil, err
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal([]byte(parse.StripCodeFences(raw)), &reply); err != nil {
		return nil, fmt.Errorf("detector reply is not JSON: %w", err)
	}
	return reply, nil
}
