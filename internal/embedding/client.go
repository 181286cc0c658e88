package embedding

import (
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client used for embedding and generation calls.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI API client. The key argument takes precedence;
// when empty the OPENAI_API_KEY environment variable is used.
func NewClient(key string) (*Client, error) {
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, errors.New("no API key: set OPENAI_API_KEY or api_key in the config")
	}

	client := openai.NewClient(option.WithAPIKey(key))
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client so the generator can share the
// same connection and credential.
func (c *Client) Client() *openai.Client {
	return c.client
}
