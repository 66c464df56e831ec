package controller

import (
	"ai-research-be/internal/pkg/serverutils"
	"ai-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWorkflowController interface {
	RegisterRoutes(r fiber.Router)
	Status(ctx *fiber.Ctx) error
}

type workflowController struct {
	workflowService service.IWorkflowService
}

func NewWorkflowController(workflowService service.IWorkflowService) IWorkflowController {
	return &workflowController{
		workflowService: workflowService,
	}
}

func (c *workflowController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/workflow/v1")
	h.Get(":sessionId/status", c.Status)
}

// Status exposes the same view as the workflow.status envelope method so
// dashboards can poll over plain HTTP.
func (c *workflowController) Status(ctx *fiber.Ctx) error {
	res, err := c.workflowService.Status(ctx.Context(), ctx.Params("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get workflow status", res))
}
