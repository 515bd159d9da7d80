package controller

import (
	"github.com/gofiber/fiber/v2"

	"pipeline-chat-be/internal/pkg/serverutils"
	"pipeline-chat-be/internal/service"
)

type ICatalogController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
}

type catalogController struct {
	service service.ICatalogService
}

func NewCatalogController(service service.ICatalogService) ICatalogController {
	return &catalogController{service: service}
}

func (c *catalogController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/catalog/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/connectors", c.GetAll)
}

func (c *catalogController) GetAll(ctx *fiber.Ctx) error {
	res := c.service.GetAllConnectors(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Success get connectors", res))
}
