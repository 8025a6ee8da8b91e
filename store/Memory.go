package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"raffle-service/model"
)

// Memory is a process-local Store enforcing the same constraints as the postgres schema.
type Memory struct {
	mu        sync.RWMutex
	lotteries map[string]*model.Lottery
	tickets   map[string]*model.Ticket
	order     []string
}

func NewMemory() *Memory {
	return &Memory{
		lotteries: make(map[string]*model.Lottery),
		tickets:   make(map[string]*model.Ticket),
	}
}

func (m *Memory) CreateLottery(ctx context.Context, lottery *model.Lottery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lotteries {
		if strings.EqualFold(l.ShareCode, lottery.ShareCode) {
			return ErrShareCodeTaken
		}
	}
	cp := *lottery
	m.lotteries[lottery.Id] = &cp
	return nil
}

func (m *Memory) GetLottery(ctx context.Context, id string) (*model.Lottery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lotteries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyLottery(l)
	return &cp, nil
}

func (m *Memory) GetLotteryByShareCode(ctx context.Context, code string) (*model.Lottery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.lotteries {
		if strings.EqualFold(l.ShareCode, code) {
			cp := copyLottery(l)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListLotteries(ctx context.Context, filter LotteryFilter) ([]model.Lottery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	open := !filter.OpenAfter.IsZero()
	lotteries := []model.Lottery{}
	for _, l := range m.lotteries {
		if filter.OrganizerId != "" && l.Organizer.Id != filter.OrganizerId {
			continue
		}
		if open && (l.IsDrawn() || !l.DrawDate.After(filter.OpenAfter)) {
			continue
		}
		lotteries = append(lotteries, copyLottery(l))
	}
	sort.Slice(lotteries, func(i, j int) bool {
		a, b := lotteries[i], lotteries[j]
		switch {
		case open && !a.DrawDate.Equal(b.DrawDate):
			return a.DrawDate.Before(b.DrawDate)
		case !open && !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Id < b.Id
	})
	return lotteries, nil
}

func (m *Memory) CountTickets(ctx context.Context, lotteryIds []string) (map[string]map[model.PaymentStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]map[model.PaymentStatus]int, len(lotteryIds))
	for _, id := range lotteryIds {
		counts[id] = make(map[model.PaymentStatus]int)
	}
	for _, t := range m.tickets {
		if c, ok := counts[t.LotteryId]; ok {
			c[t.PaymentStatus]++
		}
	}
	return counts, nil
}

func (m *Memory) FindHeldTicket(ctx context.Context, lotteryId string, number string) (*model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t := m.heldLocked(lotteryId, number); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) heldLocked(lotteryId string, number string) *model.Ticket {
	for _, t := range m.tickets {
		if t.LotteryId == lotteryId && t.SelectedNumber == number && t.PaymentStatus.Holds() {
			return t
		}
	}
	return nil
}

func (m *Memory) InsertTickets(ctx context.Context, tickets []*model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		key := t.LotteryId + "/" + t.SelectedNumber
		if seen[key] || m.heldLocked(t.LotteryId, t.SelectedNumber) != nil {
			return &DuplicateNumberError{LotteryId: t.LotteryId, Number: t.SelectedNumber}
		}
		seen[key] = true
	}
	for _, t := range tickets {
		cp := *t
		m.tickets[t.Id] = &cp
		m.order = append(m.order, t.Id)
	}
	return nil
}

func (m *Memory) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) ListTickets(ctx context.Context, lotteryId string, statuses ...model.PaymentStatus) ([]model.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tickets := []model.Ticket{}
	for _, id := range m.order {
		t := m.tickets[id]
		if t.LotteryId != lotteryId || !statusIn(t.PaymentStatus, statuses) {
			continue
		}
		tickets = append(tickets, *t)
	}
	sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].CreatedAt.Before(tickets[j].CreatedAt) })
	return tickets, nil
}

func (m *Memory) UpdateTicketStatus(ctx context.Context, change StatusChange) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[change.TicketId]
	if !ok {
		return nil, ErrNotFound
	}
	if !statusIn(t.PaymentStatus, change.From) {
		return nil, ErrConflict
	}
	// re-activating a rejected ticket must respect the held-number constraint
	if !t.PaymentStatus.Holds() && change.To.Holds() {
		if other := m.heldLocked(t.LotteryId, t.SelectedNumber); other != nil {
			return nil, &DuplicateNumberError{LotteryId: t.LotteryId, Number: t.SelectedNumber}
		}
	}
	applyChange(t, change)
	cp := *t
	return &cp, nil
}

func (m *Memory) CompleteDraw(ctx context.Context, lotteryId string, winner *model.Ticket, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lotteries[lotteryId]
	if !ok {
		return false, ErrNotFound
	}
	if l.Status != model.LotteryActive || l.WinnerNumber != nil {
		return false, ErrConflict
	}
	promoted := false
	if winner != nil {
		t, ok := m.tickets[winner.Id]
		if !ok || t.LotteryId != lotteryId {
			return false, ErrNotFound
		}
		switch t.PaymentStatus {
		case model.PaymentVerified:
		case model.PaymentVerifying:
			promoted = true
		default:
			return false, ErrWinnerIneligible
		}
		if promoted {
			applyChange(t, StatusChange{To: model.PaymentVerified, At: at})
		}
		number := t.SelectedNumber
		l.WinnerNumber = &number
	}
	l.Status = model.LotteryCompleted
	l.UpdatedAt = at
	return promoted, nil
}

func applyChange(t *model.Ticket, change StatusChange) {
	t.PaymentStatus = change.To
	at := change.At
	switch change.To {
	case model.PaymentVerified:
		t.VerifiedAt = &at
	case model.PaymentRejected:
		reason := change.Reason
		t.RejectedAt = &at
		t.RejectionReason = &reason
	}
	if change.Receipt != "" {
		receipt := change.Receipt
		t.ReceiptUrl = &receipt
	}
}

func statusIn(s model.PaymentStatus, statuses []model.PaymentStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func copyLottery(l *model.Lottery) model.Lottery {
	cp := *l
	if l.WinnerNumber != nil {
		n := *l.WinnerNumber
		cp.WinnerNumber = &n
	}
	return cp
}
