package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"site-delivery-backend/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetReport handles GET /api/projects/:project_id/report.xlsx.
func (h *Handler) GetReport(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	snap := sess.Snapshot()

	var buf bytes.Buffer
	if err := report.Write(&buf, report.Snapshot{
		Vehicles: snap.Vehicles,
		Items:    snap.Items,
		Arrivals: snap.Arrivals,
		Ledger:   snap.Ledger,
	}); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="deliveries-%s.xlsx"`, sess.ProjectID()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
