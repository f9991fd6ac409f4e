package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
)

const maxWebhookBody = 1 << 20

// WebhookHandler принимает события провайдера. Аутентификация — только подпись.
type WebhookHandler struct {
	escrow *escrow.Coordinator
}

func NewWebhookHandler(coordinator *escrow.Coordinator) *WebhookHandler {
	return &WebhookHandler{escrow: coordinator}
}

// Handle обрабатывает POST /api/webhooks/gateway. Ответ 5xx заставляет провайдера повторить доставку.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	result, err := h.escrow.HandleWebhook(c.Request.Context(), payload, c.GetHeader(gwadapter.SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Received: true, Result: string(result)})
}
