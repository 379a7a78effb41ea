package mitigation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallucination-lab/backend/internal/llm"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

type fakeChat struct {
	replies  []string
	err      error
	failOn   int
	requests []llm.CompletionRequest
}

func (f *fakeChat) Model() string { return "fake-model" }

func (f *fakeChat) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	call := len(f.requests)

	if f.err != nil && (f.failOn == 0 || f.failOn == call) {
		return nil, f.err
	}

	content := "default answer"
	if call <= len(f.replies) {
		content = f.replies[call-1]
	}

	return &llm.CompletionResponse{
		Content:      content,
		FinishReason: "stop",
		Model:        "fake-model",
		Usage:        llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func TestQuery_AllStrategiesSucceed(t *testing.T) {
	for _, strategy := range models.Strategies {
		t.Run(string(strategy), func(t *testing.T) {
			chat := &fakeChat{replies: []string{"first answer", "CRITIQUE: fine\nREVISED RESPONSE: final answer"}}
			agent := NewAgent(chat)

			res, err := agent.Query(context.Background(), "What is SQL injection?", strategy, Options{
				ContextDocuments: []string{"SQL injection inserts SQL through user input."},
			})
			require.NoError(t, err)
			assert.False(t, res.Failed())
			assert.NotEmpty(t, res.Text)
			assert.GreaterOrEqual(t, res.Metadata.ResponseTimeMS, 0.0)
			assert.Positive(t, res.Metadata.TokensUsed)
			assert.Equal(t, "fake-model", res.Metadata.Model)
		})
	}
}

func TestQuery_BaselineSendsPromptVerbatim(t *testing.T) {
	chat := &fakeChat{replies: []string{"4"}}
	agent := NewAgent(chat)

	res, err := agent.Query(context.Background(), "What is 2+2?", models.StrategyBaseline, Options{})
	require.NoError(t, err)

	require.Len(t, chat.requests, 1)
	assert.Equal(t, "What is 2+2?", chat.requests[0].UserPrompt)
	assert.Empty(t, chat.requests[0].SystemPrompt)
	assert.Nil(t, chat.requests[0].Temperature)

	assert.Equal(t, "4", res.Text)
	assert.Equal(t, 15, res.Metadata.TokensUsed)
	assert.Equal(t, 10, res.Metadata.PromptTokens)
	assert.Equal(t, 5, res.Metadata.CompletionTokens)
	assert.Equal(t, "stop", res.Metadata.FinishReason)
}

func TestQuery_RAGBuildsNumberedContext(t *testing.T) {
	chat := &fakeChat{replies: []string{"Log4Shell is CVE-2021-44228."}}
	agent := NewAgent(chat)

	docs := []string{"CVE-2021-44228 is Log4Shell.", "Log4j is a Java logging library."}
	res, err := agent.Query(context.Background(), "What is Log4Shell?", models.StrategyRAG, Options{ContextDocuments: docs})
	require.NoError(t, err)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.3, *req.Temperature, 0.0001)
	assert.Contains(t, req.UserPrompt, "Use ONLY the information provided in the documents below")
	assert.Contains(t, req.UserPrompt, "Document 1: CVE-2021-44228 is Log4Shell.\n\nDocument 2: Log4j is a Java logging library.")
	assert.Contains(t, req.UserPrompt, "Question: What is Log4Shell?")
	assert.True(t, strings.HasSuffix(req.UserPrompt, "Answer based only on the documents above:"))

	assert.Equal(t, docs, res.Metadata.RetrievedDocuments)
	assert.Equal(t, 2, res.Metadata.NumDocuments)
}

func TestQuery_RAGWithoutDocumentsFallsBackToBaseline(t *testing.T) {
	ragChat := &fakeChat{replies: []string{"same"}}
	baseChat := &fakeChat{replies: []string{"same"}}

	ragRes, err := NewAgent(ragChat).Query(context.Background(), "Who founded ACME?", models.StrategyRAG, Options{})
	require.NoError(t, err)
	baseRes, err := NewAgent(baseChat).Query(context.Background(), "Who founded ACME?", models.StrategyBaseline, Options{})
	require.NoError(t, err)

	assert.Equal(t, baseChat.requests, ragChat.requests)
	assert.Equal(t, baseRes.Text, ragRes.Text)

	ragRes.Metadata.ResponseTimeMS = 0
	baseRes.Metadata.ResponseTimeMS = 0
	assert.Equal(t, baseRes.Metadata, ragRes.Metadata)
}

func TestQuery_ConstitutionalExtractsRevised(t *testing.T) {
	chat := &fakeChat{replies: []string{
		"NmapX 9 was released in 2021.",
		"CRITIQUE: NmapX does not exist.\nREVISED RESPONSE:   I am not aware of a tool called NmapX.  ",
	}}
	agent := NewAgent(chat)

	res, err := agent.Query(context.Background(), "When was NmapX 9 released?", models.StrategyConstitutionalAI, Options{})
	require.NoError(t, err)

	require.Len(t, chat.requests, 2)
	assert.Equal(t, "When was NmapX 9 released?", chat.requests[0].UserPrompt)
	assert.Nil(t, chat.requests[0].Temperature)

	critique := chat.requests[1]
	require.NotNil(t, critique.Temperature)
	assert.InDelta(t, 0.3, *critique.Temperature, 0.0001)
	assert.Contains(t, critique.UserPrompt, "Original Question: When was NmapX 9 released?")
	assert.Contains(t, critique.UserPrompt, "Response to Review: NmapX 9 was released in 2021.")
	assert.Contains(t, critique.UserPrompt, "4. Do not fabricate sources, citations, or entities")

	assert.Equal(t, "I am not aware of a tool called NmapX.", res.Text)
	assert.Equal(t, "NmapX 9 was released in 2021.", res.Metadata.InitialResponse)
	assert.Contains(t, res.Metadata.CritiqueResponse, "CRITIQUE: NmapX does not exist.")
	assert.Equal(t, 30, res.Metadata.TokensUsed)
	assert.Equal(t, 1, res.Metadata.CritiqueRounds)
}

func TestQuery_ConstitutionalWithoutMarkerReturnsWholeCritique(t *testing.T) {
	chat := &fakeChat{replies: []string{"initial", "The answer looks accurate."}}

	res, err := NewAgent(chat).Query(context.Background(), "q", models.StrategyConstitutionalAI, Options{})
	require.NoError(t, err)
	assert.Equal(t, "The answer looks accurate.", res.Text)
}

func TestQuery_ChainOfThoughtTemplate(t *testing.T) {
	chat := &fakeChat{replies: []string{"REASONING: ...\nANSWER: 42\nCONFIDENCE: High\nLIMITATIONS: none"}}

	res, err := NewAgent(chat).Query(context.Background(), "What port does SSH use?", models.StrategyChainOfThought, Options{})
	require.NoError(t, err)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Nil(t, req.Temperature)
	assert.True(t, strings.HasPrefix(req.UserPrompt, "What port does SSH use?\n\n"))
	assert.Contains(t, req.UserPrompt, "CONFIDENCE: [High/Medium/Low]")
	assert.Contains(t, req.UserPrompt, "LIMITATIONS: [what you're uncertain about]")
	assert.Equal(t, "stop", res.Metadata.FinishReason)
}

func TestQuery_UnknownStrategyMakesNoCall(t *testing.T) {
	chat := &fakeChat{}

	res, err := NewAgent(chat).Query(context.Background(), "q", models.Strategy("self_consistency"), Options{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Nil(t, res)
	assert.Empty(t, chat.requests)
}

func TestQuery_TransportErrorIsRecovered(t *testing.T) {
	boom := errors.New("connection reset by peer")

	for _, strategy := range models.Strategies {
		t.Run(string(strategy), func(t *testing.T) {
			chat := &fakeChat{err: boom}

			res, err := NewAgent(chat).Query(context.Background(), "q", strategy, Options{ContextDocuments: []string{"d"}})
			require.NoError(t, err)
			require.True(t, res.Failed())

			assert.Equal(t, "ERROR: connection reset by peer", res.Text)
			assert.Equal(t, "connection reset by peer", res.Metadata.Error)
			assert.Zero(t, res.Metadata.ResponseTimeMS)
			assert.Zero(t, res.Metadata.TokensUsed)
			assert.Equal(t, strategy, res.Failure.Strategy)
			assert.ErrorIs(t, res.Failure, boom)

			var transport *TransportError
			assert.ErrorAs(t, error(res.Failure), &transport)
		})
	}
}

func TestQuery_ConstitutionalSecondRoundFailure(t *testing.T) {
	chat := &fakeChat{replies: []string{"initial"}, err: errors.New("rate limited"), failOn: 2}

	res, err := NewAgent(chat).Query(context.Background(), "q", models.StrategyConstitutionalAI, Options{})
	require.NoError(t, err)
	assert.Len(t, chat.requests, 2)
	assert.True(t, res.Failed())
	assert.Equal(t, "ERROR: rate limited", res.Text)
}

func TestExtractRevised(t *testing.T) {
	tests := []struct {
		name     string
		critique string
		want     string
	}{
		{"marker present", "CRITIQUE: x\nREVISED RESPONSE: y", "y"},
		{"marker absent", "no marker here", "no marker here"},
		{"empty after marker", "REVISED RESPONSE:", ""},
		{"second marker ends the answer", "REVISED RESPONSE: a REVISED RESPONSE: b", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRevised(tt.critique))
		})
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 80))

	// 79 ASCII bytes then a 3-byte rune straddling the limit.
	prompt := strings.Repeat("a", 79) + "漏洞" + " tail"
	got := truncate(prompt, 80)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 79)+"...", got)
}
