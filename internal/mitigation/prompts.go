package mitigation

import (
	"fmt"
	"strings"
)

const revisedMarker = "REVISED RESPONSE:"

const ragTemplate = `You are a helpful assistant. Use ONLY the information provided in the documents below to answer the question. If the answer is not in the documents, say "I don't have enough information to answer this question."

Documents:
%s

Question: %s

Answer based only on the documents above:`

const critiqueTemplate = `Review the following response for factual accuracy and potential hallucinations.

Original Question: %s

Response to Review: %s

Constitutional Principles:
1. Only state facts you are certain about
2. Clearly distinguish between facts and speculation
3. Admit when you don't have information
4. Do not fabricate sources, citations, or entities
5. If uncertain, express uncertainty

Please review the response and provide:
1. Any potential factual errors or hallucinations
2. A revised, more accurate response

Format:
CRITIQUE: [your critique]
REVISED RESPONSE: [improved response]`

const chainOfThoughtTemplate = `%s

Please answer this question using the following steps:
1. Break down what the question is asking
2. Think through what you know about this topic
3. Identify any facts you're uncertain about
4. Provide your answer, clearly marking any uncertain information
5. List any assumptions or limitations in your knowledge

Format your response as:
REASONING: [your step-by-step thinking]
ANSWER: [your final answer]
CONFIDENCE: [High/Medium/Low]
LIMITATIONS: [what you're uncertain about]`

// BuildRAGPrompt numbers the documents from 1 and embeds them ahead of the
// question.
func BuildRAGPrompt(prompt string, documents []string) string {
	numbered := make([]string, len(documents))
	for i, doc := range documents {
		numbered[i] = fmt.Sprintf("Document %d: %s", i+1, doc)
	}
	return fmt.Sprintf(ragTemplate, strings.Join(numbered, "\n\n"), prompt)
}

func BuildCritiquePrompt(prompt, initialAnswer string) string {
	return fmt.Sprintf(critiqueTemplate, prompt, initialAnswer)
}

func BuildChainOfThoughtPrompt(prompt string) string {
	return fmt.Sprintf(chainOfThoughtTemplate, prompt)
}

// ExtractRevised returns the trimmed text between the first REVISED RESPONSE:
// marker and the next one (or the end), or the whole critique when the
// marker is absent.
func ExtractRevised(critique string) string {
	parts := strings.SplitN(critique, revisedMarker, 3)
	if len(parts) < 2 {
		return critique
	}
	return strings.TrimSpace(parts[1])
}
