package controller

import (
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/serverutils"
	"ai-research-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	session, err := c.sessionService.Create(ctx.Context(), req.Topic)
	if err != nil {
		return err
	}

	res := dto.SessionResponse{
		ID:        session.ID,
		Topic:     session.Topic,
		Stage:     session.Stage,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	session, err := c.sessionService.Get(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", session))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	sessions, err := c.sessionService.List(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", sessions))
}
