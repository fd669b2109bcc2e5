package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"creatorstudio/internal/keypool"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ImageGenerator renders a prompt to PNG bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, size string) ([]byte, error)
}

// ImageClient generates images through the OpenAI Images API.
type ImageClient struct {
	client openai.Client
	keys   *keypool.Pool
	model  string
}

// NewImageClient returns an ImageClient for model.
func NewImageClient(keys *keypool.Pool, baseURL, model string) *ImageClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ImageClient{client: openai.NewClient(opts...), keys: keys, model: model}
}

// GenerateImage implements ImageGenerator. size is e.g. "1792x1024"; empty
// means 1024x1024.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt, size string) ([]byte, error) {
	if size == "" {
		size = string(openai.ImageGenerateParamsSize1024x1024)
	}
	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}

	var encoded string
	err := c.keys.Do(ctx, isOpenAIRateLimit, func(key string) error {
		resp, err := c.client.Images.Generate(ctx, params, option.WithAPIKey(key))
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			return errors.New("image response carried no data")
		}
		encoded = resp.Data[0].B64JSON
		return nil
	})
	if err != nil {
		return nil, err
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}
	return img, nil
}
