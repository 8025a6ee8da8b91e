package controller

import (
	"github.com/gofiber/fiber/v2"

	"raffle-service/utils"
)

func (ctl *Controller) PerformDraw(c *fiber.Ctx) error {
	type DrawData struct {
		LotteryId string `json:"lotteryId"`
	}
	data := new(DrawData)
	if err := c.BodyParser(data); err != nil || data.LotteryId == "" {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Lottery ID is required")
	}
	result, err := ctl.Draws.PerformDraw(c.UserContext(), data.LotteryId)
	if err != nil {
		return ctl.errorResponse(c, "PerformDraw", err)
	}
	if result.NoWinner {
		total := 0
		for _, n := range result.StatusBreakdown {
			total += n
		}
		return c.JSON(fiber.Map{
			"status":            fiber.StatusOK,
			"success":           true,
			"noWinner":          true,
			"message":           "Lottery completed without a winner: no participant had a verified or verifying payment",
			"totalParticipants": 0,
			"emailsSent":        0,
			"emailsFailed":      0,
			"details": fiber.Map{
				"totalTickets":    total,
				"statusBreakdown": result.StatusBreakdown,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":            fiber.StatusOK,
		"success":           true,
		"winner":            result.Winner,
		"emailsSent":        result.EmailsSent,
		"emailsFailed":      result.EmailsFailed,
		"totalParticipants": result.TotalParticipants,
		"emailResults":      result.EmailResults,
	})
}
