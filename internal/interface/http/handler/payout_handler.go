package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
)

// PayoutHandler управляет счётом исполнителя для выплат.
type PayoutHandler struct {
	escrow *escrow.Coordinator
}

func NewPayoutHandler(coordinator *escrow.Coordinator) *PayoutHandler {
	return &PayoutHandler{escrow: coordinator}
}

func (h *PayoutHandler) Register(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.RegisterPayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	acc, err := h.escrow.RegisterPayoutDestination(c.Request.Context(), actor, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPayoutAccountResponse(acc))
}

// Refresh перечитывает готовность счёта у провайдера.
func (h *PayoutHandler) Refresh(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	acc, err := h.escrow.RefreshPayoutDestination(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPayoutAccountResponse(acc))
}

func (h *PayoutHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	acc, err := h.escrow.GetPayoutAccount(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPayoutAccountResponse(acc))
}
