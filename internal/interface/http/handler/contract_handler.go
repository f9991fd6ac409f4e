package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
)

type ContractHandler struct {
	contracts *contract.Manager
	escrow    *escrow.Coordinator
}

func NewContractHandler(contracts *contract.Manager, coordinator *escrow.Coordinator) *ContractHandler {
	return &ContractHandler{contracts: contracts, escrow: coordinator}
}

// ListMine обрабатывает GET /api/contracts.
func (h *ContractHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	contracts, err := h.contracts.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponses(contracts))
}

func (h *ContractHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ct, err := h.contracts.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponse(ct))
}

func (h *ContractHandler) Payments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payments, err := h.contracts.Payments(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPaymentResponses(payments))
}

// Complete обрабатывает POST /api/contracts/:id/complete (исполнитель сдаёт работу).
func (h *ContractHandler) Complete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ct, err := h.contracts.MarkCompleted(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponse(ct))
}

func (h *ContractHandler) Cancel(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ct, err := h.contracts.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponse(ct))
}

// Fund обрабатывает POST /api/contracts/:id/fund: средства заказчика уходят в эскроу.
func (h *ContractHandler) Fund(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.escrow.Fund(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FundResponse{
		Payment:      dto.ToPaymentResponse(res.Payment),
		ClientSecret: res.ClientSecret,
	})
}

// Release обрабатывает POST /api/contracts/:id/release: перевод исполнителю за вычетом комиссии.
func (h *ContractHandler) Release(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.escrow.Release(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPaymentResponse(payment))
}

func (h *ContractHandler) Refund(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.escrow.Refund(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToPaymentResponse(payment))
}
