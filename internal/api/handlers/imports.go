package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellness-kit/order-intake/internal/api/response"
	"github.com/wellness-kit/order-intake/internal/config"
	"github.com/wellness-kit/order-intake/internal/dataset"
	"github.com/wellness-kit/order-intake/internal/ingest"
	"github.com/wellness-kit/order-intake/internal/models"
	"github.com/wellness-kit/order-intake/internal/session"
	"github.com/wellness-kit/order-intake/internal/storage"
)

const maxPageSize = 500

// ImportHandler serves the review-and-submit flow for uploaded order files.
type ImportHandler struct {
	registry *session.Registry
	store    storage.Store
	cfg      *config.Config
}

// NewImportHandler creates a new import handler.
func NewImportHandler(registry *session.Registry, store storage.Store, cfg *config.Config) *ImportHandler {
	return &ImportHandler{registry: registry, store: store, cfg: cfg}
}

// GateView is the upload gate as shown to the console.
type GateView struct {
	Open     bool     `json:"open"`
	Blockers []string `json:"blockers"`
	dataset.Readiness
}

// ImportView is the response body for every import endpoint that returns the dataset.
type ImportView struct {
	SessionID  uuid.UUID            `json:"session_id"`
	Filename   string               `json:"filename"`
	Headers    []string             `json:"headers"`
	Delimiter  string               `json:"delimiter"`
	Report     *ingest.Report       `json:"report"`
	Counts     dataset.Counts       `json:"counts"`
	Gate       GateView             `json:"gate"`
	Records    []dataset.Record     `json:"records"`
	Pagination models.Pagination    `json:"pagination"`
	Result     *models.ImportResult `json:"result,omitempty"`
}

func newImportView(s *session.Session, ds *dataset.Dataset, page, pageSize int) ImportView {
	r := s.Readiness()
	view := ImportView{
		SessionID: s.ID,
		Filename:  ds.Filename,
		Headers:   ds.Headers,
		Delimiter: string(ds.Delimiter),
		Report:    ds.Report,
		Counts:    ds.Counts(),
		Gate:      GateView{Open: r.Open(), Blockers: r.Blockers(), Readiness: r},
		Result:    s.Result(),
	}
	if view.Headers == nil {
		view.Headers = []string{}
	}

	view.Pagination = models.NewPagination(page, pageSize, ds.Len())
	lo, hi := view.Pagination.Bounds()
	view.Records = ds.Records[lo:hi]
	if view.Records == nil {
		view.Records = []dataset.Record{}
	}
	return view
}

// HandleCreate handles POST /api/v1/imports.
func (h *ImportHandler) HandleCreate(c *gin.Context) {
	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	s := h.registry.Create()
	c.Set("session_id", s.ID)

	ds, err := s.Load(c.Request.Context(), up)
	if err != nil {
		h.registry.Delete(s.ID)
		h.loadFailed(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newImportView(s, ds, 1, h.cfg.Upload.PageSize))
}

// HandleReplace handles PUT /api/v1/imports/:id. The new file supersedes the
// session's current one and any load still running for it.
func (h *ImportHandler) HandleReplace(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	ds, err := s.Load(c.Request.Context(), up)
	if err != nil {
		h.loadFailed(c, err)
		return
	}

	response.Success(c, http.StatusOK, newImportView(s, ds, 1, h.cfg.Upload.PageSize))
}

// HandleGet handles GET /api/v1/imports/:id.
func (h *ImportHandler) HandleGet(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	ds := s.Dataset()
	if ds == nil {
		response.NotFound(c, session.ErrNoDataset.Error())
		return
	}

	page, pageSize := h.pageParams(c)
	response.Success(c, http.StatusOK, newImportView(s, ds, page, pageSize))
}

// HandleStripInvalid handles POST /api/v1/imports/:id/strip-invalid.
func (h *ImportHandler) HandleStripInvalid(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	ds, _, err := s.StripInvalid()
	if errors.Is(err, session.ErrNoDataset) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, fmt.Sprintf("failed to remove invalid rows: %v", err))
		return
	}

	response.Success(c, http.StatusOK, newImportView(s, ds, 1, h.cfg.Upload.PageSize))
}

// HandleExport handles GET /api/v1/imports/:id/export.
func (h *ImportHandler) HandleExport(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	ds := s.Dataset()
	if ds == nil {
		response.NotFound(c, session.ErrNoDataset.Error())
		return
	}

	name := ds.Filename
	if name == "" {
		name = "orders.csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, "cleaned_"+name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(ds.Serialize()))
}

// HandleSubmit handles POST /api/v1/imports/:id/submit.
func (h *ImportHandler) HandleSubmit(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	result, err := s.Submit(c.Request.Context(), h.store)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoDataset):
		response.NotFound(c, err.Error())
		return
	case errors.Is(err, session.ErrGateClosed):
		response.Unprocessable(c, "GATE_CLOSED", "file cannot be submitted yet", s.Readiness().Blockers())
		return
	case errors.Is(err, session.ErrSubmitting):
		response.Conflict(c, err.Error(), nil)
		return
	case errors.Is(err, storage.ErrDuplicateBatch):
		response.Conflict(c, err.Error(), nil)
		return
	default:
		storeFailed(c, err, "failed to store batch")
		return
	}

	r := s.Readiness()
	response.Success(c, http.StatusOK, gin.H{
		"session_id": s.ID,
		"result":     result,
		"gate":       GateView{Open: r.Open(), Blockers: r.Blockers(), Readiness: r},
	})
}

// HandleDelete handles DELETE /api/v1/imports/:id.
func (h *ImportHandler) HandleDelete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid import id format", nil)
		return
	}
	if !h.registry.Delete(id) {
		response.NotFound(c, "import not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session_id": id, "cleared": true})
}

func (h *ImportHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid import id format", nil)
		return nil, false
	}
	s, ok := h.registry.Get(id)
	if !ok {
		response.NotFound(c, "import not found")
		return nil, false
	}
	c.Set("session_id", id)
	return s, true
}

// readUpload pulls the multipart "file" field, enforcing type and size.
func (h *ImportHandler) readUpload(c *gin.Context) (session.Upload, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field is required", nil)
		return session.Upload{}, false
	}

	contentType := file.Header.Get("Content-Type")
	if !ingest.IsCSV(file.Filename, contentType) {
		response.BadRequest(c, ingest.MsgNotCSV, nil)
		return session.Upload{}, false
	}

	if file.Size > h.cfg.Upload.MaxFileSize {
		response.TooLarge(c, fmt.Sprintf("file exceeds max size of %d bytes", h.cfg.Upload.MaxFileSize))
		return session.Upload{}, false
	}

	src, err := file.Open()
	if err != nil {
		response.InternalError(c, "failed to open uploaded file")
		return session.Upload{}, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.cfg.Upload.MaxFileSize+1))
	if err != nil {
		response.InternalError(c, "failed to read uploaded file")
		return session.Upload{}, false
	}

	return session.Upload{Filename: file.Filename, ContentType: contentType, Data: data}, true
}

// storeFailed reports a store error: the order service's own text goes back
// as 502, anything local is a 500 with a fixed message.
func storeFailed(c *gin.Context, err error, internalMsg string) {
	c.Error(err)
	switch {
	case errors.Is(err, storage.ErrInvalidPayload):
		response.Unprocessable(c, "INVALID_PAYLOAD", err.Error(), nil)
	case storage.IsUpstream(err):
		response.BadGateway(c, err.Error())
	default:
		response.InternalError(c, internalMsg)
	}
}

func (h *ImportHandler) loadFailed(c *gin.Context, err error) {
	if errors.Is(err, session.ErrSuperseded) {
		response.Conflict(c, err.Error(), nil)
		return
	}
	c.Error(err)
	response.InternalError(c, fmt.Sprintf("failed to load file: %v", err))
}

func (h *ImportHandler) pageParams(c *gin.Context) (page, pageSize int) {
	page, pageSize = 1, h.cfg.Upload.PageSize

	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.Query("page_size")); err == nil && ps > 0 && ps <= maxPageSize {
		pageSize = ps
	}
	return page, pageSize
}
