package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Participantes"

var exportHeader = []interface{}{"Número", "Participante", "Email", "Teléfono", "Estado", "Comprobante", "Reservado", "Verificado", "Rechazado", "Motivo"}

// Export renders every ticket of a lottery as an XLSX workbook.
func (s *LotteryService) Export(ctx context.Context, lotteryId string) ([]byte, string, error) {
	lottery, err := s.Get(ctx, lotteryId)
	if err != nil {
		return nil, "", err
	}
	tickets, err := s.store.ListTickets(ctx, lotteryId)
	if err != nil {
		return nil, "", &StoreError{Op: "list tickets", Err: err}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, "", err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, "", err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, "", err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return nil, "", err
	}
	for i, t := range tickets {
		row := []interface{}{
			t.SelectedNumber,
			t.Participant.Name,
			t.Participant.Email,
			t.Participant.Phone,
			string(t.PaymentStatus),
			deref(t.ReceiptUrl),
			s.formatTime(&t.CreatedAt),
			s.formatTime(t.VerifiedAt),
			s.formatTime(t.RejectedAt),
			deref(t.RejectionReason),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, "", err
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "J", 18); err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("unable to write export: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("sorteo-%s.xlsx", lottery.ShareCode), nil
}

func (s *LotteryService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(s.location).Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
