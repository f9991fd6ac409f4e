package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
)

type AdminHandler struct {
	escrow *escrow.Coordinator
}

func NewAdminHandler(coordinator *escrow.Coordinator) *AdminHandler {
	return &AdminHandler{escrow: coordinator}
}

// Sweep запускает проход сверки вне расписания.
func (h *AdminHandler) Sweep(c *gin.Context) {
	report, err := h.escrow.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
