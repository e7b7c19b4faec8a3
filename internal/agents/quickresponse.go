package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
)

// QuickResponseToolName is the return-direct fast path for casual queries.
const QuickResponseToolName = "quick_response"

var quickResponseTemplates = map[string][]string{
	"greeting": {
		"Hello! Ready to help you achieve your fitness goals!",
		"Hi there! What fitness challenge can I help you tackle today?",
		"Hey! I'm here to support your health and wellness journey!",
	},
	"thanks": {
		"You're very welcome! Happy to help on your fitness journey!",
		"My pleasure! Keep up the great work!",
		"Anytime! I'm here whenever you need fitness support!",
	},
	"casual": {
		"Great to hear from you! How can I support your fitness today?",
		"Nice! What's on your fitness agenda?",
		"Awesome! Ready to help you stay on track!",
	},
	"general_fitness": {
		"Great question! In general, consistency and proper form are key. For detailed guidance tailored to you, a certified trainer is always the best bet!",
		"Excellent fitness mindset! Start with the basics, progress gradually, and listen to your body.",
	},
	"motivation": {
		"You've got this! Every step forward, no matter how small, is progress!",
		"Keep going! Your commitment to fitness is inspiring!",
		"You're stronger than you think! Trust the process and stay consistent!",
	},
	"comment": {
		"Thanks for sharing! How else can I support your fitness journey?",
		"Great to hear! Anything specific I can help you with today?",
	},
}

var quickResponseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query_type": {
			"type": "string",
			"enum": ["greeting", "thanks", "casual", "general_fitness", "motivation", "comment"],
			"description": "Type of casual query"
		},
		"user_query": {
			"type": "string",
			"description": "The original user message"
		}
	},
	"required": ["query_type", "user_query"]
}`)

// NewQuickResponseTool builds the return-direct tool that answers greetings,
// thanks, and other casual interactions without further routing.
func NewQuickResponseTool() *LocalTool {
	return &LocalTool{
		Spec: ToolSpec{
			Name: QuickResponseToolName,
			Description: "Provides immediate, casual responses for common queries like greetings, thanks, " +
				"simple comments, general fitness questions, or motivation requests. Responding with this " +
				"tool ends the conversation turn immediately.",
			InputSchema: quickResponseSchema,
		},
		ReturnDirect: true,
		Run:          runQuickResponse,
	}
}

func runQuickResponse(_ context.Context, arguments map[string]any) (string, error) {
	queryType, _ := arguments["query_type"].(string)

	templates, ok := quickResponseTemplates[queryType]
	if !ok {
		templates = quickResponseTemplates["casual"]
	}
	if len(templates) == 0 {
		return "", fmt.Errorf("no response templates for %q", queryType)
	}

	return templates[rand.Intn(len(templates))], nil
}
