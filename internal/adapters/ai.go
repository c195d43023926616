package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/compresr/composer/internal/resource"
	"github.com/compresr/composer/internal/store"
)

const defaultLLMCacheTTL = 30 * 24 * time.Hour

// CachedResolver adapts a Registry of AI providers into the render
// package's TextResolver interface, wrapping every call in the llm_cache
// lookup-by-(operation,input_hash,model) -> compute-on-miss -> upsert
// contract spec.md §4.9 requires. It also truncates prompts to the
// resolver's token budget (MaxTokens, one value for every model) via
// tiktoken-go before calling the provider,
// reusing the teacher's existing purpose for that dependency.
type CachedResolver struct {
	Registry  *Registry
	Store     store.Store
	MaxTokens int // 0 uses defaultMaxTokens
}

const defaultMaxTokens = 4096

func (c *CachedResolver) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}

func (c *CachedResolver) Summarize(ctx context.Context, content string, model string) (string, error) {
	prompt := "Summarize the following content:\n\n" + content
	return c.completeCached(ctx, "summarize", content, model, prompt)
}

func (c *CachedResolver) Consolidate(ctx context.Context, contents []string, model string) (string, error) {
	joined := strings.Join(contents, "\n\n---\n\n")
	prompt := "Consolidate the following sources into a single coherent document:\n\n" + joined
	return c.completeCached(ctx, "consolidate", joined, model, prompt)
}

func (c *CachedResolver) Topic(ctx context.Context, topic string, contents []string, review bool, model string) (string, error) {
	joined := strings.Join(contents, "\n\n---\n\n")
	prompt := fmt.Sprintf("Extract everything relevant to the topic %q from the following sources:\n\n%s", topic, joined)
	inputKey := topic + "\x00" + joined
	out, err := c.completeCached(ctx, "topic", inputKey, model, prompt)
	if err != nil || !review {
		return out, err
	}
	reviewPrompt := fmt.Sprintf("Review and tighten the following topic extract for %q:\n\n%s", topic, out)
	return c.completeCached(ctx, "topic_review", out, model, reviewPrompt)
}

func (c *CachedResolver) completeCached(ctx context.Context, operation, cacheInput, model, prompt string) (string, error) {
	inputHash := resource.ContentHash([]byte(cacheInput)).String()

	if c.Store != nil {
		entry, err := c.Store.GetLLM(ctx, operation, inputHash, model)
		if err != nil {
			return "", err
		}
		if entry != nil {
			return entry.Response, nil
		}
	}

	provider, err := c.Registry.Resolve(model)
	if err != nil {
		return "", err
	}

	truncated := truncateToTokenBudget(prompt, c.maxTokens())
	response, err := provider.Complete(ctx, truncated, c.maxTokens())
	if err != nil {
		return "", err
	}

	if c.Store != nil {
		now := time.Now()
		if err := c.Store.UpsertLLM(ctx, store.LLMEntry{
			Operation: operation,
			InputHash: inputHash,
			Model:     model,
			Response:  response,
			CreatedAt: now,
			ExpiresAt: now.Add(defaultLLMCacheTTL),
		}); err != nil {
			return "", err
		}
	}
	return response, nil
}

// truncateToTokenBudget trims prompt to fit within maxTokens using the
// cl100k_base encoding tiktoken-go ships, matching the teacher's existing
// usage of this dependency for request-size estimation.
func truncateToTokenBudget(prompt string, maxTokens int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return prompt
	}
	tokens := enc.Encode(prompt, nil, nil)
	if len(tokens) <= maxTokens {
		return prompt
	}
	return enc.Decode(tokens[:maxTokens])
}
