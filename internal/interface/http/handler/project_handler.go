package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/dto"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/bid"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
)

type ProjectHandler struct {
	catalog *project.Catalog
	bids    *bid.Arbitration
}

func NewProjectHandler(catalog *project.Catalog, bids *bid.Arbitration) *ProjectHandler {
	return &ProjectHandler{catalog: catalog, bids: bids}
}

// Create обрабатывает POST /api/projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), actor, project.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Currency:    req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToProjectResponse(p))
}

// List обрабатывает GET /api/projects?limit=&offset=.
func (h *ProjectHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	page, err := h.catalog.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToProjectResponses(page.Projects), page.Total, page.Limit, page.Offset)
}

// ListMine обрабатывает GET /api/me/projects: проекты заказчика во всех статусах.
func (h *ProjectHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, err := h.catalog.ListMine(c.Request.Context(), actor, parseIntQuery(c, "limit", 20), parseIntQuery(c, "offset", 0))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToProjectResponses(page.Projects), page.Total, page.Limit, page.Offset)
}

// Update обрабатывает PUT /api/projects/:id.
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	p, err := h.catalog.Update(c.Request.Context(), actor, id, project.UpdateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Currency:    req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProjectResponse(p))
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProjectResponse(p))
}

func (h *ProjectHandler) Close(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.catalog.Close(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProjectResponse(p))
}

// SubmitApplication обрабатывает POST /api/projects/:id/applications.
func (h *ProjectHandler) SubmitApplication(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	app, err := h.bids.Submit(c.Request.Context(), actor, bid.SubmitInput{
		ProjectID:        projectID,
		BidAmount:        req.BidAmount,
		ProposedTimeline: req.ProposedTimeline,
		CoverLetter:      req.CoverLetter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToApplicationResponse(app))
}

// ListApplications доступен владельцу проекта и администратору.
func (h *ProjectHandler) ListApplications(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	apps, err := h.bids.ListForProject(c.Request.Context(), actor, projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToApplicationResponses(apps))
}

// ListMyApplications обрабатывает GET /api/me/applications.
func (h *ProjectHandler) ListMyApplications(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	apps, err := h.bids.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToApplicationResponses(apps))
}
