package controller

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"raffle-service/service"
	"raffle-service/utils"
)

// parseTicketIds accepts a JSON array or a comma separated list.
func parseTicketIds(raw string) []string {
	raw = strings.TrimSpace(raw)
	ids := []string{}
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			return ids
		}
		return nil
	}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (ctl *Controller) UploadReceipt(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Missing required fields")
	}
	ticketIds := parseTicketIds(c.FormValue("ticketIds"))
	if len(ticketIds) == 0 {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Missing required fields")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return ctl.errorResponse(c, "UploadReceipt", err)
	}
	defer file.Close()

	result, err := ctl.Verification.AttachReceipt(c.UserContext(), service.ReceiptSubmission{
		LotteryId:        c.FormValue("lotteryId"),
		TicketIds:        ticketIds,
		ParticipantEmail: c.FormValue("participantEmail"),
		ParticipantName:  c.FormValue("participantName"),
		FileName:         fileHeader.Filename,
		File:             file,
	})
	if err != nil {
		return ctl.errorResponse(c, "UploadReceipt", err)
	}
	return c.JSON(fiber.Map{
		"status":        fiber.StatusOK,
		"success":       true,
		"publicUrl":     result.ReceiptUrl,
		"data":          result.Tickets,
		"notifications": result.Notifications,
	})
}

func (ctl *Controller) GetReceiptFile(c *fiber.Ctx) error {
	f, err := ctl.Receipts.Open("receipts/" + c.Params("*"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return utils.JsonErrorResponse(c, fiber.StatusNotFound, "File not found")
		}
		return ctl.errorResponse(c, "GetReceiptFile", err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "File not found")
	}
	// the response stream closes f once the body is written
	c.Type(strings.TrimPrefix(extOf(info.Name()), "."))
	c.Set("Cache-Control", "public, max-age=3600")
	return c.SendStream(f, int(info.Size()))
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
