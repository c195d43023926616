package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// BedrockAI backs the AI capability for "bedrock:"-prefixed
// summarize_model/consolidate_model frontmatter values, reusing the
// teacher's existing AWS SigV4 + Bedrock invocation idea from
// internal/gateway/bedrock_signer.go and external/bedrock_transport.go,
// generalized from "proxy an inbound chat request" down to "invoke one
// model on a literal prompt string." Request/response bodies are
// patched ad-hoc with gjson/sjson rather than a per-model Go struct,
// reusing the teacher's existing JSON-manipulation style from
// external/llm.go.
type BedrockAI struct {
	client *bedrockruntime.Client
	modelID string
}

// NewBedrockAI loads AWS credentials the default way (env, shared config,
// IAM role) and binds to modelID, e.g. "anthropic.claude-3-haiku-20240307-v1:0".
func NewBedrockAI(ctx context.Context, modelID string) (*BedrockAI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("adapters: loading aws config: %w", err)
	}
	return &BedrockAI{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

func (b *BedrockAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := sjson.Set("{}", "anthropic_version", "bedrock-2023-05-31")
	if err != nil {
		return "", err
	}
	body, _ = sjson.Set(body, "max_tokens", maxTokens)
	body, _ = sjson.SetRaw(body, "messages", fmt.Sprintf(`[{"role":"user","content":%s}]`, jsonString(prompt)))

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        []byte(body),
	})
	if err != nil {
		return "", fmt.Errorf("adapters: bedrock invoke: %w", err)
	}

	result := gjson.GetBytes(out.Body, "content.0.text")
	if !result.Exists() {
		return "", fmt.Errorf("adapters: bedrock response missing content.0.text")
	}
	return result.String(), nil
}

func (b *BedrockAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		body, _ := sjson.Set("{}", "inputText", text)
		out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String("amazon.titan-embed-text-v2:0"),
			ContentType: aws.String("application/json"),
			Body:        []byte(body),
		})
		if err != nil {
			return nil, fmt.Errorf("adapters: bedrock embed: %w", err)
		}
		raw := gjson.GetBytes(out.Body, "embedding").Array()
		vec := make([]float32, len(raw))
		for i, v := range raw {
			vec[i] = float32(v.Float())
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
