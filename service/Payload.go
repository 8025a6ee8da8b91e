package service

import (
	"strings"

	"raffle-service/model"
	"raffle-service/notification"
)

// Links builds public URLs placed in notifications.
type Links struct {
	BaseURL string
}

func (l Links) Lottery(shareCode string) string {
	if l.BaseURL == "" || shareCode == "" {
		return ""
	}
	return strings.TrimRight(l.BaseURL, "/") + "/lottery/" + shareCode
}

func lotteryPayload(lottery *model.Lottery, links Links) notification.Payload {
	return notification.Payload{
		LotteryTitle:     lottery.PrizeTitle,
		PrizeDescription: lottery.PrizeDescription,
		ShareCode:        lottery.ShareCode,
		DrawDate:         lottery.DrawDate,
		TicketPrice:      lottery.TicketPrice.StringFixed(2),
		OrganizerName:    lottery.Organizer.Name,
		OrganizerEmail:   lottery.Organizer.Email,
		OrganizerPhone:   lottery.Organizer.Phone,
		Link:             links.Lottery(lottery.ShareCode),
	}
}

func participantOf(t *model.Ticket) notification.Recipient {
	return notification.Recipient{Name: t.Participant.Name, Email: t.Participant.Email, Phone: t.Participant.Phone}
}

func organizerOf(l *model.Lottery) notification.Recipient {
	return notification.Recipient{Name: l.Organizer.Name, Email: l.Organizer.Email, Phone: l.Organizer.Phone}
}
