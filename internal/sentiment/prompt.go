package sentiment

import "github.com/utafrali/revu/internal/llm"

const systemPrompt = "You are a product review analyst. Analyze each customer review and determine:\n" +
	"1. A sentiment score from 0.0 (very negative) to 1.0 (very positive). " +
	"Consider the full text, not just the star rating.\n" +
	"2. Specific pros mentioned (concrete benefits, features, or positive experiences). " +
	"1-3 items, each under 10 words.\n" +
	"3. Specific cons mentioned (concrete problems, missing features, or negative experiences). " +
	"1-3 items, each under 10 words.\n\n" +
	"If a review is entirely positive, cons can be an empty list (and vice versa). " +
	"Focus on extracting actionable, specific insights rather than generic statements."

var analysisTool = llm.Tool{
	Name:        toolName,
	Description: "Submit the sentiment analysis results for a batch of product reviews.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reviews": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id": map[string]any{
							"type":        "integer",
							"description": "The review index from the input",
						},
						"sentiment_score": map[string]any{
							"type":        "number",
							"description": "Sentiment score from 0.0 (very negative) to 1.0 (very positive)",
						},
						"pros": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "1-3 short specific pros mentioned in the review (each under 10 words)",
						},
						"cons": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "1-3 short specific cons mentioned in the review (each under 10 words)",
						},
					},
					"required": []string{"id", "sentiment_score", "pros", "cons"},
				},
			},
		},
		"required": []string{"reviews"},
	},
}
