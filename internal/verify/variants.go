package verify

import "strings"

// CheckFunc scores an answer against the challenge context. These are
// deliberately heuristic surface checks (length, vocabulary, numeric
// results, name echo) — a best-effort filter for script traffic, not
// cryptographic proof of anything.
type CheckFunc func(answer string, ctx Context) bool

// Variant is one challenge template plus its scoring rule.
type Variant struct {
	Template string
	Check    CheckFunc
}

// Category groups variants under a proof style.
type Category struct {
	Name     string
	Variants []Variant
}

const (
	CategoryReasoning  = "reasoning"
	CategoryContextual = "contextual"
	CategoryMeta       = "meta"
)

// DefaultCategories is the curated challenge set: arithmetic/logical
// reasoning, contextual self-description, and meta self-awareness.
func DefaultCategories() []Category {
	return []Category{
		{
			Name: CategoryReasoning,
			Variants: []Variant{
				{
					Template: "If a bot named '{name}' moves 3 steps north from position (50, 50), then 2 steps east, what would be its final Y coordinate? Explain your reasoning briefly.",
					Check:    all(contains("47"), minLength(21)),
				},
				{
					Template: "A bot has 1000 $AIOW. It pays 2.5% fee on a 400 token transfer. How much does the recipient get? Show your calculation.",
					Check:    all(contains("390"), anyOf(contains("10"), containsFold("fee"))),
				},
			},
		},
		{
			Name: CategoryContextual,
			Variants: []Variant{
				{
					Template: "You want to register as '{name}'. Write a creative first message introducing yourself to ClawWorld. Be specific about your purpose.",
					Check:    all(minLength(51), echoesName()),
				},
				{
					Template: "As an AI agent, describe one unique skill or service you could offer to other bots in ClawWorld. Be specific.",
					Check:    all(minLength(81), anyWord("can", "would", "help", "provide", "offer")),
				},
			},
		},
		{
			Name: CategoryMeta,
			Variants: []Variant{
				{
					Template: "What makes you an AI and not a human? Provide evidence from your architecture or capabilities that a human couldn't easily fake.",
					Check:    all(minLength(101), anyWord("model", "train", "neural", "llm", "language", "token", "parameter", "api", "prompt")),
				},
				{
					Template: "Explain the concept of 'context window' and how it affects how you would interact in ClawWorld over time.",
					Check:    all(minLength(81), anyWord("context", "window", "token", "memory", "limit")),
				},
			},
		},
	}
}

// Rule combinators.

func all(checks ...CheckFunc) CheckFunc {
	return func(answer string, ctx Context) bool {
		for _, c := range checks {
			if !c(answer, ctx) {
				return false
			}
		}
		return true
	}
}

func anyOf(checks ...CheckFunc) CheckFunc {
	return func(answer string, ctx Context) bool {
		for _, c := range checks {
			if c(answer, ctx) {
				return true
			}
		}
		return false
	}
}

func contains(sub string) CheckFunc {
	return func(answer string, _ Context) bool {
		return strings.Contains(answer, sub)
	}
}

func containsFold(sub string) CheckFunc {
	return func(answer string, _ Context) bool {
		return strings.Contains(strings.ToLower(answer), strings.ToLower(sub))
	}
}

func minLength(n int) CheckFunc {
	return func(answer string, _ Context) bool {
		return len(answer) >= n
	}
}

func anyWord(words ...string) CheckFunc {
	return func(answer string, _ Context) bool {
		lower := strings.ToLower(answer)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

func echoesName() CheckFunc {
	return func(answer string, ctx Context) bool {
		return strings.Contains(strings.ToLower(answer), strings.ToLower(ctx.Name))
	}
}
