package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sirupsen/logrus"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

const (
	bedrockDefaultMaxTokens   = 4096
	bedrockDefaultTemperature = 0.7
)

// bedrockImageFormats maps recognized attachment media types to the
// Converse image formats. Anything else is dropped from the provider
// payload.
var bedrockImageFormats = map[string]types.ImageFormat{
	"image/png":  types.ImageFormatPng,
	"image/jpeg": types.ImageFormatJpeg,
	"image/gif":  types.ImageFormatGif,
	"image/webp": types.ImageFormatWebp,
}

// Bedrock implements Invoker over the unified Converse API. The client
// must target the region hosting the cross-region inference profiles
// that the us.* model identifiers name.
type Bedrock struct {
	client *bedrockruntime.Client
	log    *logrus.Entry
}

// NewBedrock creates the Converse-backed adapter.
func NewBedrock(client *bedrockruntime.Client) *Bedrock {
	return &Bedrock{
		client: client,
		log:    logrus.WithField("provider", models.ProviderBedrock),
	}
}

// Invoke translates the neutral request to the Converse wire model and
// returns the assistant text with token usage.
func (b *Bedrock) Invoke(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	input := b.translate(req)

	resp, err := b.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: converse %s: %v", apperr.ErrProvider, req.ModelID, err)
	}

	output, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("%w: converse %s returned no message", apperr.ErrProvider, req.ModelID)
	}
	var content string
	for _, block := range output.Value.Content {
		if text, isText := block.(*types.ContentBlockMemberText); isText {
			content += text.Value
		}
	}

	result := &ChatResponse{
		Content:  content,
		ModelID:  req.ModelID,
		Provider: models.ProviderBedrock,
	}
	if resp.Usage != nil {
		result.Usage = &Usage{
			InputTokens:  int(aws.ToInt32(resp.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(resp.Usage.OutputTokens)),
		}
	}
	return result, nil
}

// translate maps the neutral request onto the Converse wire model.
func (b *Bedrock) translate(req ChatRequest) *bedrockruntime.ConverseInput {
	messages := make([]types.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := types.ConversationRoleUser
		if msg.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}

		content := []types.ContentBlock{
			&types.ContentBlockMemberText{Value: msg.Content},
		}
		for _, att := range msg.Attachments {
			format, ok := bedrockImageFormats[att.MediaType]
			if !ok {
				b.log.WithFields(logrus.Fields{
					"media_type": att.MediaType,
					"name":       att.Name,
				}).Debug("dropping unsupported attachment from provider payload")
				continue
			}
			content = append(content, &types.ContentBlockMemberImage{
				Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: att.Data},
				},
			})
		}

		messages = append(messages, types.Message{Role: role, Content: content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = bedrockDefaultMaxTokens
	}
	temperature := bedrockDefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.ModelID),
		Messages: messages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(float32(temperature)),
		},
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}
	return input
}
