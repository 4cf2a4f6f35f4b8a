package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-base/internal/core/domain"
)

const groundedSystemInstruction = `You are a knowledge base assistant.
Answer only from the numbered sources below.
Cite every claim with the source number in square brackets, for example [1].
If the sources do not contain the answer, say so directly.`

func buildGroundedPrompt(question string, evidence []domain.ScoredCandidate) string {
	var sources strings.Builder
	for idx, candidate := range evidence {
		title := candidate.DocumentTitle
		if title == "" {
			title = candidate.DocumentSource
		}
		sources.WriteString(fmt.Sprintf(
			"[%d] title=%s score=%.3f\n%s\n\n",
			idx+1,
			title,
			candidate.Score,
			candidate.Content,
		))
	}

	return fmt.Sprintf(`Question:
%s

Sources:
%s`, question, sources.String())
}
