package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wellness-kit/order-intake/internal/ingest"
)

// HandleTemplate handles GET /api/v1/template.
func HandleTemplate(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, ingest.TemplateFilename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(ingest.TemplateCSV))
}
