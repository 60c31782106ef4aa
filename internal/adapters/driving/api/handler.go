package api

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// CheckHandler serves liveness probes.
type CheckHandler struct{}

// NewCheckHandler creates a CheckHandler.
func NewCheckHandler() *CheckHandler {
	return &CheckHandler{}
}

// HandleHealthy reports that the process is serving.
func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// QueryHandler answers and retrieves.
type QueryHandler struct {
	query driving.QueryService
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(query driving.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// HandleQuery answers a question with citations.
func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	answer, err := h.query.Ask(c.UserContext(), params.Question, params.Options())
	if err != nil {
		return err
	}

	return c.JSON(&QueryResponse{
		Answer:     answer.Text,
		Intent:     answer.Intent.String(),
		Confidence: answer.Confidence,
		Degraded:   answer.Degraded,
		Truncated:  answer.Truncated,
		NoEvidence: answer.NoEvidence,
		Citations:  toCitations(answer.Citations),
		Sources:    toEvidence(answer.Evidence),
		Timestamp:  time.Now(),
	})
}

// HandleRetrieve returns ranked evidence without generating an answer.
func (h *QueryHandler) HandleRetrieve(c *fiber.Ctx) error {
	var params QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	results, cls, err := h.query.Retrieve(c.UserContext(), params.Question, params.Options())
	if err != nil {
		return err
	}

	return c.JSON(&RetrieveResponse{
		Intent:      cls.Intent.String(),
		DocumentIDs: cls.DocumentIDs,
		Results:     toEvidence(results),
	})
}

// IngestHandler adds, inspects and removes papers.
type IngestHandler struct {
	ingest    driving.IngestService
	uploadDir string
	roots     []string
}

// NewIngestHandler creates an IngestHandler. Uploaded files are saved
// under uploadDir before extraction. A JSON path is only ingested when it
// resolves inside uploadDir or one of roots.
func NewIngestHandler(ingest driving.IngestService, uploadDir string, roots ...string) *IngestHandler {
	h := &IngestHandler{ingest: ingest, uploadDir: uploadDir}
	for _, r := range append([]string{uploadDir}, roots...) {
		if r == "" {
			continue
		}
		if abs, err := resolvePath(r); err == nil {
			h.roots = append(h.roots, abs)
		}
	}
	return h
}

// HandleIngest accepts a multipart "file" upload or a JSON IngestParams body.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	if file, err := c.FormFile("file"); err == nil {
		name := filepath.Base(file.Filename)
		if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
			return NewValidationError(map[string]string{"file": "invalid file name"})
		}
		if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(h.uploadDir, name)
		if err := c.SaveFile(file, path); err != nil {
			return err
		}
		logger.Info("Saved upload to %s", path)
		return h.respond(c, path)
	}

	var params IngestParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}
	if params.Path != "" {
		path, ok := h.allowed(params.Path)
		if !ok {
			return NewValidationError(map[string]string{"Path": "outside the allowed directories"})
		}
		return h.respond(c, path)
	}

	status, err := h.ingest.Ingest(c.UserContext(), params.Raw())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(status)
}

func (h *IngestHandler) respond(c *fiber.Ctx, path string) error {
	status, err := h.ingest.IngestFile(c.UserContext(), path)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(status)
}

// allowed resolves path to an absolute, symlink-free form and reports
// whether it lies under one of the handler's roots.
func (h *IngestHandler) allowed(path string) (string, bool) {
	abs, err := resolvePath(path)
	if err != nil {
		return "", false
	}
	for _, root := range h.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return abs, true
	}
	return "", false
}

// resolvePath makes path absolute and follows symlinks when it exists.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, fs.ErrNotExist):
		// Resolve the parent so a missing file under a symlinked root
		// still compares against the resolved root.
		dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
		if err != nil {
			return abs, nil
		}
		return filepath.Join(dir, filepath.Base(abs)), nil
	default:
		return "", err
	}
}

// HandleStatus returns the ingestion status of one document.
func (h *IngestHandler) HandleStatus(c *fiber.Ctx) error {
	status, err := h.ingest.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// HandleDelete removes a document from every index.
func (h *IngestHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.ingest.Remove(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": id})
}

// LibraryHandler reports on the collection.
type LibraryHandler struct {
	library driving.LibraryService
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(library driving.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// HandleStats returns collection and duplicate statistics.
func (h *LibraryHandler) HandleStats(c *fiber.Ctx) error {
	collection, err := h.library.Stats(c.UserContext())
	if err != nil {
		return err
	}
	dups, err := h.library.DuplicateStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"collection": collection,
		"duplicates": dups,
	})
}

// HandleDuplicates lists duplicate clusters, optionally restricted by a
// comma-separated "documents" query parameter.
func (h *LibraryHandler) HandleDuplicates(c *fiber.Ctx) error {
	var ids []string
	for _, id := range strings.Split(c.Query("documents"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	reports, err := h.library.Duplicates(c.UserContext(), ids)
	if err != nil {
		return err
	}

	clusters := make([]Cluster, len(reports))
	for i := range reports {
		cl := &reports[i].Cluster
		clusters[i] = Cluster{
			ID:                cl.ID,
			Representative:    cl.Representative,
			Members:           cl.Members,
			DocumentIDs:       reports[i].DocumentIDs,
			AverageSimilarity: cl.AverageSimilarity(),
		}
	}
	return c.JSON(fiber.Map{"clusters": clusters, "count": len(clusters)})
}

// HandleDocuments lists the indexed papers.
func (h *LibraryHandler) HandleDocuments(c *fiber.Ctx) error {
	docs, err := h.library.Documents(c.UserContext())
	if err != nil {
		return err
	}
	infos := make([]DocumentInfo, len(docs))
	for i := range docs {
		infos[i] = DocumentInfo{
			ID:         docs[i].ID,
			Title:      docs[i].Title,
			URI:        docs[i].URI,
			Reference:  docs[i].Reference(),
			Authors:    docs[i].Authors,
			Sections:   len(docs[i].Sections),
			IngestedAt: docs[i].IngestedAt,
		}
	}
	return c.JSON(infos)
}
