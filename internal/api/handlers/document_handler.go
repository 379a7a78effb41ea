package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/middleware/validation"
)

type KnowledgeBase interface {
	AddDocuments(ctx context.Context, docs []knowledge.Document) (int, error)
	Query(ctx context.Context, text string, k int) (*knowledge.Retrieval, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	SeedDefaults(ctx context.Context) (int, error)
}

type Ingester interface {
	IngestHTML(ctx context.Context, source, html string) (*knowledge.IngestResult, error)
	IngestURL(ctx context.Context, url string) (*knowledge.IngestResult, error)
}

// DocumentHandler manages the knowledge base behind the rag strategy.
type DocumentHandler struct {
	kb       KnowledgeBase
	ingester Ingester
}

func NewDocumentHandler(kb KnowledgeBase, ingester Ingester) *DocumentHandler {
	return &DocumentHandler{
		kb:       kb,
		ingester: ingester,
	}
}

type addDocumentsRequest struct {
	Documents []knowledge.Document `json:"documents" validate:"required,min=1,dive"`
}

func (h *DocumentHandler) AddDocuments(c *fiber.Ctx) error {
	var req addDocumentsRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid documents")
	}

	added, err := h.kb.AddDocuments(c.UserContext(), req.Documents)
	if err != nil {
		return fail(c, err, "Failed to add documents")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"submitted": len(req.Documents),
		"added":     added,
	})
}

type uploadDocumentRequest struct {
	URL         string `json:"url" validate:"omitempty,url"`
	HTMLContent string `json:"html_content" validate:"required_without=URL"`
}

// UploadDocument ingests an HTML page. With html_content the page is taken
// as given and url only labels the source; otherwise url is fetched.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req uploadDocumentRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid document")
	}

	var (
		res *knowledge.IngestResult
		err error
	)
	if req.HTMLContent != "" {
		source := req.URL
		if source == "" {
			source = "upload"
		}
		res, err = h.ingester.IngestHTML(c.UserContext(), source, req.HTMLContent)
	} else {
		res, err = h.ingester.IngestURL(c.UserContext(), req.URL)
	}
	if err != nil {
		return fail(c, err, "Failed to process document")
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

type searchRequest struct {
	Query string `json:"query" validate:"required,maxprompt"`
	K     int    `json:"k" validate:"gte=0,lte=50"`
}

func (h *DocumentHandler) Search(c *fiber.Ctx) error {
	var req searchRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid search")
	}

	r, err := h.kb.Query(c.UserContext(), req.Query, req.K)
	if err != nil {
		return fail(c, err, "Failed to search knowledge base")
	}

	return c.JSON(r)
}

func (h *DocumentHandler) Count(c *fiber.Ctx) error {
	n, err := h.kb.Count(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to count documents")
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *DocumentHandler) Seed(c *fiber.Ctx) error {
	added, err := h.kb.SeedDefaults(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to seed knowledge base")
	}

	n, err := h.kb.Count(c.UserContext())
	if err != nil {
		return fail(c, err, "Failed to count documents")
	}

	return c.JSON(fiber.Map{"added": added, "count": n})
}

func (h *DocumentHandler) Clear(c *fiber.Ctx) error {
	if err := h.kb.Clear(c.UserContext()); err != nil {
		return fail(c, err, "Failed to clear knowledge base")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
