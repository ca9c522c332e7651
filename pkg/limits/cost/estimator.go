package cost

// DefaultCharsPerToken is the characters-per-token ratio of GPT-style
// tokenizers on English text.
const DefaultCharsPerToken = 4.0

// Per-message formatting overhead, in tokens.
const (
	messageOverhead      = 3
	conversationOverhead = 3
)

// Message is one message of a chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Estimator estimates token usage before a request is sent.
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string) int

	// EstimateTurn estimates the usage of a chat turn. maxCompletion is the
	// completion budget requested from the model.
	EstimateTurn(messages []Message, maxCompletion int) Usage
}

// SimpleEstimator implements character-based token estimation.
type SimpleEstimator struct {
	charsPerToken float64
}

// NewSimpleEstimator creates an estimator using charsPerToken characters per
// token. Non-positive values fall back to DefaultCharsPerToken.
func NewSimpleEstimator(charsPerToken float64) *SimpleEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &SimpleEstimator{charsPerToken: charsPerToken}
}

// EstimateText estimates tokens for a single text string.
// Non-empty text is at least one token.
func (e *SimpleEstimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}

	tokens := float64(len(text)) / e.charsPerToken
	if tokens < 1.0 {
		tokens = 1.0
	}
	return int(tokens + 0.5)
}

// EstimateTurn estimates prompt tokens for messages, including formatting
// overhead, and takes maxCompletion as the completion estimate.
func (e *SimpleEstimator) EstimateTurn(messages []Message, maxCompletion int) Usage {
	prompt := 0
	if len(messages) > 0 {
		for _, msg := range messages {
			// ~1 token for the role
			prompt += 1 + e.EstimateText(msg.Content) + messageOverhead
		}
		prompt += conversationOverhead
	}

	if maxCompletion < 0 {
		maxCompletion = 0
	}

	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: maxCompletion,
	}
}
