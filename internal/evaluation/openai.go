package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Client talks to an OpenAI-compatible chat completion API. It implements
// both Evaluator and PatientSimulator.
type Client struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// NewClient creates an LLM client. baseURL may be empty for the default
// OpenAI endpoint.
func NewClient(baseURL, apiKey, modelName string, log zerolog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: modelName,
		log:   log.With().Str("component", "llm_client").Logger(),
	}
}

// checklistVerdict is the model's per-item answer.
type checklistVerdict struct {
	Completed     bool   `json:"completed"`
	Justification string `json:"justification"`
}

type evaluationResponse struct {
	Checklist []checklistVerdict `json:"checklist"`
}

// Evaluate grades the transcript against the case checklist. Points and the
// percentage are computed server-side from the rubric — the model only
// decides completed/not-completed per item.
func (c *Client) Evaluate(ctx context.Context, cs *model.Case, transcript []model.TranscriptTurn) (*model.EvaluationResult, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildEvaluationPrompt(cs)},
			{Role: openai.ChatMessageRoleUser, Content: "TRANSCRIPT:\n" + transcriptText(transcript)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "evaluation service call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.KindUnavailable, "evaluation service returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Str("raw", raw).Msg("Evaluation response")

	var parsed evaluationResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable,
			fmt.Sprintf("unparseable evaluation response: %s", raw), err)
	}
	if len(parsed.Checklist) != len(cs.Checklist) {
		return nil, apperr.Newf(apperr.KindUnavailable,
			"evaluation returned %d checklist verdicts, expected %d", len(parsed.Checklist), len(cs.Checklist))
	}

	return scoreChecklist(cs.Checklist, parsed.Checklist), nil
}

// scoreChecklist merges the rubric with the model's verdicts and computes
// the point totals.
func scoreChecklist(rubric []model.ChecklistItem, verdicts []checklistVerdict) *model.EvaluationResult {
	result := &model.EvaluationResult{
		Checklist: make([]model.ChecklistResult, len(rubric)),
	}
	for i, item := range rubric {
		v := verdicts[i]
		result.Checklist[i] = model.ChecklistResult{
			Description:   item.Description,
			Points:        item.Points,
			Category:      item.Category,
			Completed:     v.Completed,
			Justification: v.Justification,
		}
		result.PointsTotal += item.Points
		if v.Completed {
			result.PointsEarned += item.Points
		}
	}
	if result.PointsTotal > 0 {
		result.Percentage = result.PointsEarned / result.PointsTotal * 100
	}
	return result
}

// Reply produces the simulated patient's answer to the student's message.
func (c *Client) Reply(ctx context.Context, cs *model.Case, transcript []model.TranscriptTurn, message string) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildPatientPrompt(cs)},
	}
	for _, turn := range transcript {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.TranscriptRolePatient {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "patient simulator call failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindUnavailable, "patient simulator returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
