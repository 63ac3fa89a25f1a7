// Package prompts implements MCP prompt handlers for the decision graph.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExplorePrompt handles the dec-explore MCP prompt. It guides the AI
// through the graduated query ladder instead of dumping the whole graph.
type ExplorePrompt struct{}

// NewExplorePrompt creates an ExplorePrompt.
func NewExplorePrompt() *ExplorePrompt {
	return &ExplorePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ExplorePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("dec-explore",
		mcp.WithPromptDescription(
			"Explore the recorded architectural decisions around a topic, "+
				"starting from the most relevant ones and expanding only as needed.",
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What you want to understand, e.g. 'storage layer' or 'why we dropped REST'"),
		),
	)
}

// Handle processes the dec-explore prompt request.
func (p *ExplorePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := "the project's architecture"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["topic"]; ok && v != "" {
			topic = v
		}
	}

	instructions := fmt.Sprintf(`Help me understand the decisions behind %s.

Work through the decision graph step by step:

1. Call dec_top to see the most relevant decisions.
2. Pick the decision closest to the topic and call dec_neighborhood with
   its ID to see what it is connected to. Expand to max_hops: 2 only if
   the direct neighbors are not enough.
3. When one decision clearly matters, call dec_context with its ID for
   the full rationale, implementation notes, and alternatives.

Summarize what you find in plain language: what was decided, why, what it
depends on, and whether anything superseded it. Do not call dec_context
on every decision — escalate only where the bounded views leave
questions open.`, topic)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explore decisions: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(instructions),
			},
		},
	}, nil
}
