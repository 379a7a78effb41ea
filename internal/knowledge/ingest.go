package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/pkg/logger"
)

const defaultChunkSize = 800

var (
	ErrNoContent = errors.New("no content extracted from HTML")

	whitespace = regexp.MustCompile(`\s+`)
)

// Ingester turns HTML pages into sentence-aligned passages and adds them to
// the knowledge base.
type Ingester struct {
	oracle     *Oracle
	httpClient *http.Client
	chunkSize  int
}

type IngestResult struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
	Added  int    `json:"added"`
}

func NewIngester(oracle *Oracle, chunkSize int) *Ingester {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Ingester{
		oracle:    oracle,
		chunkSize: chunkSize,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IngestURL fetches a page and ingests it with the URL as its source.
func (in *Ingester) IngestURL(ctx context.Context, url string) (*IngestResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "hallucination-lab/1.0")

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	return in.IngestHTML(ctx, url, string(body))
}

func (in *Ingester) IngestHTML(ctx context.Context, source, html string) (*IngestResult, error) {
	logger.Info("Ingesting document", zap.String("source", source))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := extractTitle(doc)
	text := extractText(doc)
	if text == "" {
		return nil, ErrNoContent
	}

	chunks, err := ChunkText(text, in.chunkSize)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			Text: c,
			Metadata: map[string]string{
				"source":   source,
				"title":    title,
				"chunk":    strconv.Itoa(i),
				"category": "ingested",
			},
		}
	}

	added, err := in.oracle.AddDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}

	logger.Info("Document ingested",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("added", added),
	)

	return &IngestResult{Source: source, Title: title, Chunks: len(chunks), Added: added}, nil
}

func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "Untitled"
	}
	return title
}

// ChunkText splits text into sentences and packs consecutive sentences into
// chunks of at most size bytes. A single sentence longer than size becomes
// its own chunk.
func ChunkText(text string, size int) ([]string, error) {
	if size <= 0 {
		size = defaultChunkSize
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to segment text: %w", err)
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, s := range doc.Sentences() {
		sentence := strings.TrimSpace(s.Text)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks, nil
}
