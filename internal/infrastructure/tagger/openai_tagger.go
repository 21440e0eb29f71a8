package tagger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/psms-tech/go-backend/internal/cfg"
	"github.com/psms-tech/go-backend/internal/usecase"
	"github.com/psms-tech/go-backend/pkg/e"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	maxTags      = 10
	maxAttrs     = 10
	maxTagLength = 40
)

const systemPrompt = `You catalogue household items from photos.
Reply with a JSON object {"tags": [...], "attributes": {...}}.
tags: up to 10 short lowercase keywords describing the object (type, material, colour, use).
attributes: up to 10 key/value pairs such as brand, color, material, size. Values are strings.
Omit anything you are not confident about.`

// OpenAITagger предлагает теги и атрибуты предмета по фото через OpenAI-совместимый API.
type OpenAITagger struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAITagger(c *cfg.LLMCfg) *OpenAITagger {
	config := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		config.BaseURL = c.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: c.Timeout}

	limit := rate.Inf
	if c.RPS > 0 {
		limit = rate.Limit(c.RPS)
	}

	return &OpenAITagger{
		client:  openai.NewClientWithConfig(config),
		model:   c.Model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *OpenAITagger) Tag(ctx context.Context, req *usecase.TagReq) (*usecase.TagRes, error) {
	const op = "OpenAITagger.Tag"

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", req.ContentType, base64.StdEncoding.EncodeToString(req.Image))

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: describeItem(req)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(resp.Choices) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("empty completion"))
	}

	res, err := parseTags(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

func describeItem(req *usecase.TagReq) string {
	if req.Item == nil {
		return "Describe the item in the photo."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Item name: %s.", req.Item.Name)
	if req.Item.Category != "" {
		fmt.Fprintf(&sb, " Category: %s.", req.Item.Category)
	}
	if len(req.Item.Tags) > 0 {
		fmt.Fprintf(&sb, " Existing tags: %s.", strings.Join(req.Item.Tags, ", "))
	}
	return sb.String()
}

type tagAnswer struct {
	Tags       []string       `json:"tags"`
	Attributes map[string]any `json:"attributes"`
}

// parseTags разбирает ответ модели и нормализует теги и атрибуты.
func parseTags(content string) (*usecase.TagRes, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var answer tagAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return nil, fmt.Errorf("decode tagger answer: %w", err)
	}

	res := &usecase.TagRes{Attributes: make(map[string]string)}

	seen := make(map[string]struct{})
	for _, tag := range answer.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || len(tag) > maxTagLength {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		res.Tags = append(res.Tags, tag)
		if len(res.Tags) == maxTags {
			break
		}
	}

	for k, v := range answer.Attributes {
		if len(res.Attributes) == maxAttrs {
			break
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || v == nil {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(v))
		if value == "" {
			continue
		}
		res.Attributes[k] = value
	}

	return res, nil
}

var _ usecase.Tagger = (*OpenAITagger)(nil)
