package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"raffle-service/service"
	"raffle-service/storage"
	"raffle-service/utils"
)

// Controller holds the services the HTTP handlers delegate to. It is built once by the composition root.
type Controller struct {
	ServiceName  string
	Lotteries    *service.LotteryService
	Reservations *service.ReservationService
	Verification *service.VerificationService
	Draws        *service.DrawEngine
	Receipts     *storage.ReceiptStorage
}

func (ctl *Controller) Index(c *fiber.Ctx) error {
	c.Accepts("text/plain", "application/json")
	return c.JSON(fiber.Map{"status": 200, "message": "Welcome to the raffle draw and participation API"})
}

func (ctl *Controller) ServiceStatusCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": 200, "message": "This API service is running!"})
}

// errorResponse maps service errors to HTTP responses. Unexpected errors are logged and answered with a trace id.
func (ctl *Controller) errorResponse(c *fiber.Ctx, op string, err error) error {
	var invalid *service.ValidationError
	var taken *service.NumberTakenError
	var closed *service.ClosedError
	switch {
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": invalid.Error(), "field": invalid.Field})
	case errors.As(err, &taken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": fiber.StatusConflict, "message": taken.Error(), "number": taken.Number})
	case errors.As(err, &closed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": fiber.StatusBadRequest, "message": "Participation is closed", "reason": closed.Reason})
	case errors.Is(err, service.ErrAlreadyDrawn):
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Lottery already drawn")
	case errors.Is(err, service.ErrLotteryNotFound):
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "Lottery not found")
	case errors.Is(err, service.ErrTicketNotFound):
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "Ticket not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.JsonErrorResponse(c, fiber.StatusConflict, "Ticket payment status does not allow this action")
	}
	return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "We have an issue on our end!", utils.Logger{
		LogLevel:    utils.CRITICAL,
		Message:     op + ": " + err.Error(),
		ServiceName: ctl.ServiceName,
	})
}
