package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"raffle-service/service"
	"raffle-service/utils"
)

func (ctl *Controller) CreateLottery(c *fiber.Ctx) error {
	req := new(service.NewLottery)
	if err := c.BodyParser(req); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide all required data")
	}
	lottery, err := ctl.Lotteries.Create(c.UserContext(), *req)
	if err != nil {
		return ctl.errorResponse(c, "CreateLottery", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": fiber.StatusCreated, "message": "Lottery created", "data": lottery})
}

func (ctl *Controller) GetLotteryByCode(c *fiber.Ctx) error {
	view, err := ctl.Lotteries.GetByShareCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return ctl.errorResponse(c, "GetLotteryByCode", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": view})
}

func (ctl *Controller) GetParticipationWindow(c *fiber.Ctx) error {
	window, err := ctl.Lotteries.Window(c.UserContext(), c.Params("code"))
	if err != nil {
		return ctl.errorResponse(c, "GetParticipationWindow", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": window})
}

func (ctl *Controller) ListTickets(c *fiber.Ctx) error {
	list, err := ctl.Lotteries.ListTickets(c.UserContext(), c.Params("id"), c.Query("status"))
	if err != nil {
		return ctl.errorResponse(c, "ListTickets", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": list.Tickets, "statusBreakdown": list.Breakdown})
}

func (ctl *Controller) ExportTickets(c *fiber.Ctx) error {
	content, name, err := ctl.Lotteries.Export(c.UserContext(), c.Params("id"))
	if err != nil {
		return ctl.errorResponse(c, "ExportTickets", err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(content)
}

// GetMyLotteries serves the organizer dashboard of the signed-in user.
func (ctl *Controller) GetMyLotteries(c *fiber.Ctx) error {
	organizerId := c.Get(UserIdHeader)
	if organizerId == "" {
		return utils.JsonErrorResponse(c, fiber.StatusUnauthorized, "Authentication required")
	}
	dashboard, err := ctl.Lotteries.Dashboard(c.UserContext(), organizerId)
	if err != nil {
		return ctl.errorResponse(c, "GetMyLotteries", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": dashboard})
}

func (ctl *Controller) ExploreLotteries(c *fiber.Ctx) error {
	lotteries, err := ctl.Lotteries.Explore(c.UserContext())
	if err != nil {
		return ctl.errorResponse(c, "ExploreLotteries", err)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": lotteries})
}
