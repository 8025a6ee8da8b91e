package controller

import (
	"github.com/gofiber/fiber/v2"

	"raffle-service/model"
	"raffle-service/service"
	"raffle-service/utils"
)

// UserIdHeader is set by the authenticating proxy for signed-in participants.
const UserIdHeader = "X-User-Id"

func (ctl *Controller) ReserveNumbers(c *fiber.Ctx) error {
	type ReserveData struct {
		Numbers          []string `json:"numbers"`
		ParticipantName  string   `json:"participantName"`
		ParticipantEmail string   `json:"participantEmail"`
		ParticipantPhone string   `json:"participantPhone"`
	}
	data := new(ReserveData)
	if err := c.BodyParser(data); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide all required data")
	}
	tickets, err := ctl.Reservations.Reserve(c.UserContext(), c.Params("id"), service.ReservationRequest{
		Numbers: data.Numbers,
		Participant: model.Participant{
			UserId: c.Get(UserIdHeader),
			Name:   data.ParticipantName,
			Email:  data.ParticipantEmail,
			Phone:  data.ParticipantPhone,
		},
	})
	if err != nil {
		return ctl.errorResponse(c, "ReserveNumbers", err)
	}
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.Id
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": fiber.StatusCreated, "message": "Numbers reserved", "ticketIds": ids, "data": tickets})
}

func (ctl *Controller) CancelSelection(c *fiber.Ctx) error {
	req := new(service.CancelRequest)
	if err := c.BodyParser(req); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide all required data")
	}
	tickets, err := ctl.Reservations.Cancel(c.UserContext(), c.Params("id"), *req)
	if err != nil {
		return ctl.errorResponse(c, "CancelSelection", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Selection cancelled, numbers released", "data": tickets})
}

func (ctl *Controller) VerifyTicket(c *fiber.Ctx) error {
	result, err := ctl.Verification.Verify(c.UserContext(), c.Params("id"))
	if err != nil {
		return ctl.errorResponse(c, "VerifyTicket", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Payment verified", "data": result})
}

func (ctl *Controller) RejectTicket(c *fiber.Ctx) error {
	type RejectData struct {
		Reason string `json:"reason"`
	}
	data := new(RejectData)
	if err := c.BodyParser(data); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide all required data")
	}
	result, err := ctl.Verification.Reject(c.UserContext(), c.Params("id"), data.Reason)
	if err != nil {
		return ctl.errorResponse(c, "RejectTicket", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "Payment rejected", "data": result})
}
