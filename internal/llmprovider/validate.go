package llmprovider

import (
	"fmt"

	"github.com/aicodeaudit/auditor/internal/auditerr"
)

const charsPerToken = 4.0

// estimateTokens approximates a prompt's token count from its character
// length (spec §4.D step 2: "≈ chars/4").
func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return int(float64(total) / charsPerToken)
}

// validateRequest applies spec §4.D step 1's checks before any network
// call is attempted.
func validateRequest(req ChatRequest, maxContextTokens int) error {
	if len(req.Messages) == 0 {
		return auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("request has no messages"))
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("temperature %v outside [0, 2]", req.Temperature))
	}
	if req.TopP < 0 || req.TopP > 1 {
		return auditerr.New(auditerr.ErrValidation, false, fmt.Errorf("top_p %v outside [0, 1]", req.TopP))
	}

	estimated := estimateTokens(req.Messages)
	if maxContextTokens > 0 && float64(estimated) >= 0.8*float64(maxContextTokens) {
		return auditerr.New(auditerr.ErrValidation, false,
			fmt.Errorf("estimated input tokens %d exceeds 80%% of max context %d", estimated, maxContextTokens))
	}

	return nil
}
