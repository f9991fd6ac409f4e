package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/bid"
)

type ApplicationHandler struct {
	bids *bid.Arbitration
}

func NewApplicationHandler(bids *bid.Arbitration) *ApplicationHandler {
	return &ApplicationHandler{bids: bids}
}

// Accept обрабатывает POST /api/applications/:id/accept и возвращает созданный контракт.
func (h *ApplicationHandler) Accept(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	contract, err := h.bids.Accept(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToContractResponse(contract))
}

func (h *ApplicationHandler) Reject(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	app, err := h.bids.Reject(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToApplicationResponse(app))
}
