package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle-service/model"
	"raffle-service/notification"
	"raffle-service/storage"
)

func newVerification(f *fixture) (*VerificationService, *storage.ReceiptStorage) {
	receipts := storage.NewReceiptStorage(afero.NewMemMapFs(), "https://files.example.com", 1<<20)
	receipts.Now = f.clock
	v := NewVerificationService(f.store, f.dispatcher, receipts, Links{BaseURL: "https://rifas.example.com"})
	v.now = f.clock
	return v, receipts
}

func TestVerifyApprovesAndNotifies(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	tk := f.seedTicket(t, l.Id, "08", model.PaymentVerifying, "ana@example.com")
	v, _ := newVerification(f)

	res, err := v.Verify(ctx, tk.Id)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Notified)
	assert.Equal(t, model.PaymentVerified, res.Ticket.PaymentStatus)
	require.NotNil(t, res.Ticket.VerifiedAt)
	assert.Equal(t, f.now, *res.Ticket.VerifiedAt)

	require.Len(t, f.channel.sent, 1)
	msg := f.channel.sent[0]
	assert.Equal(t, notification.PaymentApproved, msg.Kind)
	assert.Equal(t, "ana@example.com", msg.To.Email)
	assert.Equal(t, []string{"08"}, msg.Payload.Numbers)
	assert.Equal(t, "Bicicleta", msg.Payload.LotteryTitle)
	assert.Equal(t, "https://rifas.example.com/lottery/"+l.ShareCode, msg.Payload.Link)
}

func TestVerifyPendingIsTolerated(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	tk := f.seedTicket(t, l.Id, "09", model.PaymentPending, "ana@example.com")
	v, _ := newVerification(f)

	res, err := v.Verify(ctx, tk.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentVerified, res.Ticket.PaymentStatus)
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	tk := f.seedTicket(t, l.Id, "10", model.PaymentVerifying, "ana@example.com")
	v, _ := newVerification(f)

	_, err := v.Verify(ctx, tk.Id)
	require.NoError(t, err)
	again, err := v.Verify(ctx, tk.Id)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, model.PaymentVerified, again.Ticket.PaymentStatus)
	assert.Len(t, f.channel.sent, 1, "a repeated verification sends nothing")
}

func TestVerifyErrors(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	rejected := f.seedTicket(t, l.Id, "11", model.PaymentRejected, "ana@example.com")
	v, _ := newVerification(f)

	_, err := v.Verify(ctx, "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = v.Verify(ctx, rejected.Id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyNotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	tk := f.seedTicket(t, l.Id, "12", model.PaymentVerifying, "ana@example.com")
	f.channel.failOn["ana@example.com"] = errors.New("smtp down")
	v, _ := newVerification(f)

	res, err := v.Verify(ctx, tk.Id)
	require.NoError(t, err)
	assert.False(t, res.Notified)
	assert.Equal(t, "smtp down", res.NotifyError)

	stored, err := f.store.GetTicket(ctx, tk.Id)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentVerified, stored.PaymentStatus)
}

func TestRejectReleasesNumberAndRelaysReason(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	tk := f.seedTicket(t, l.Id, "13", model.PaymentVerifying, "ana@example.com")
	v, _ := newVerification(f)

	reason := "El monto no coincide con el precio del número"
	res, err := v.Reject(ctx, tk.Id, reason)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRejected, res.Ticket.PaymentStatus)
	require.NotNil(t, res.Ticket.RejectionReason)
	assert.Equal(t, reason, *res.Ticket.RejectionReason)
	assert.NotNil(t, res.Ticket.RejectedAt)

	require.Len(t, f.channel.sent, 1)
	assert.Equal(t, notification.PaymentRejected, f.channel.sent[0].Kind)
	assert.Equal(t, reason, f.channel.sent[0].Payload.Reason)

	_, err = f.store.FindHeldTicket(ctx, l.Id, "13")
	assert.Error(t, err, "number must be free")

	again, err := v.Reject(ctx, tk.Id, "other")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, reason, *again.Ticket.RejectionReason)
}

func TestRejectErrors(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	verified := f.seedTicket(t, l.Id, "14", model.PaymentVerified, "ana@example.com")
	pending := f.seedTicket(t, l.Id, "15", model.PaymentPending, "ana@example.com")
	v, _ := newVerification(f)

	_, err := v.Reject(ctx, pending.Id, "   ")
	var invalid *ValidationError
	assert.True(t, errors.As(err, &invalid))

	_, err = v.Reject(ctx, verified.Id, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = v.Reject(ctx, "missing", "late")
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.Empty(t, f.channel.sent)
}

func TestAttachReceipt(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	a := f.seedTicket(t, l.Id, "20", model.PaymentPending, "ana@example.com")
	b := f.seedTicket(t, l.Id, "21", model.PaymentPending, "ana@example.com")
	v, receipts := newVerification(f)

	res, err := v.AttachReceipt(ctx, ReceiptSubmission{
		LotteryId:        l.Id,
		TicketIds:        []string{a.Id, b.Id},
		ParticipantEmail: "ana@example.com",
		ParticipantName:  "Ana",
		FileName:         "pago.jpg",
		File:             strings.NewReader("jpeg"),
	})
	require.NoError(t, err)
	expectedPath := "receipts/" + l.Id + "/" + a.Id + "-" + itoa(f.now.UnixMilli()) + ".jpg"
	assert.Equal(t, "https://files.example.com/"+expectedPath, res.ReceiptUrl)
	exists, _ := afero.Exists(receipts.Fs, expectedPath)
	assert.True(t, exists)

	require.Len(t, res.Tickets, 2)
	for _, tk := range res.Tickets {
		assert.Equal(t, model.PaymentVerifying, tk.PaymentStatus)
		require.NotNil(t, tk.ReceiptUrl)
		assert.Equal(t, res.ReceiptUrl, *tk.ReceiptUrl)
	}

	assert.Equal(t, 2, res.Notifications.Sent)
	assert.Equal(t, []notification.Kind{notification.PaymentConfirmation, notification.NewPaymentAlert}, f.channel.kinds())
	assert.Equal(t, "luis@example.com", f.channel.sent[1].To.Email)
	assert.Equal(t, []string{"20", "21"}, f.channel.sent[1].Payload.Numbers)
	assert.Equal(t, []time.Duration{DefaultSendDelay}, f.waits)
}

func TestAttachReceiptErrors(t *testing.T) {
	f := newFixture()
	l := f.seedLottery(t)
	other := f.seedLottery(t)
	foreign := f.seedTicket(t, other.Id, "30", model.PaymentPending, "ana@example.com")
	verified := f.seedTicket(t, l.Id, "31", model.PaymentVerified, "ana@example.com")
	own := f.seedTicket(t, l.Id, "32", model.PaymentPending, "ana@example.com")
	v, _ := newVerification(f)

	submit := func(ids []string, name string) error {
		_, err := v.AttachReceipt(ctx, ReceiptSubmission{LotteryId: l.Id, TicketIds: ids, FileName: name, File: strings.NewReader("x")})
		return err
	}
	var invalid *ValidationError
	assert.True(t, errors.As(submit(nil, "a.png"), &invalid))
	assert.True(t, errors.As(submit([]string{foreign.Id}, "a.png"), &invalid))
	assert.True(t, errors.As(submit([]string{own.Id}, "a.exe"), &invalid))
	assert.ErrorIs(t, submit([]string{verified.Id}, "a.png"), ErrInvalidTransition)
	assert.ErrorIs(t, submit([]string{"missing"}, "a.png"), ErrTicketNotFound)

	_, err := v.AttachReceipt(ctx, ReceiptSubmission{LotteryId: "missing", TicketIds: []string{own.Id}, FileName: "a.png", File: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrLotteryNotFound)

	stored, _ := f.store.GetTicket(ctx, own.Id)
	assert.Equal(t, model.PaymentPending, stored.PaymentStatus)
	assert.Empty(t, f.channel.sent)
}
