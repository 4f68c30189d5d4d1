package payment_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
	emailsvc "github.com/trezcool/soka/services/email"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

func TestService(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	playerRepo := sqlxrepos.NewPlayerRepository(db)
	playerSvc := player.NewService(db, playerRepo, usrRepo, team.NewService(db, sqlxrepos.NewTeamRepository(db), usrRepo))
	conf := testutil.NewConfig()
	svc := payment.NewService(sqlxrepos.NewPaymentRepository(db), playerSvc, usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	ctx := context.Background()

	boss := testutil.CreateUser(t, usrRepo, "Boss", "boss", "boss@soka.test", "", user.RoleManager, true)
	kid := testutil.CreateUser(t, usrRepo, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@soka.test", "", user.RolePlayer, true)
	leo := testutil.CreatePlayer(t, playerRepo, "Leo", "Messi", "2012-06-24", nil, &kid.ID)
	xavi := testutil.CreatePlayer(t, playerRepo, "Xavi", "Hernandez", "2012-01-25", nil, nil)

	np := payment.NewPayment{
		PlayerID: 999, Amount: 4500, Concept: payment.ConceptMonthlyFee,
		Method: payment.MethodCash, Status: payment.StatusPaid, PaidOn: "2024-01-05",
	}
	_, err := svc.Create(ctx, boss.ID, np)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "player_id", vErr.Fields[0].Field)

	np.PlayerID = leo.ID
	jan, err := svc.Create(ctx, boss.ID, np)
	require.NoError(t, err)
	assert.Equal(t, boss.ID, jan.RecordedBy)

	np.PaidOn = "2024-02-05"
	np.Status = payment.StatusPending
	_, err = svc.Create(ctx, boss.ID, np)
	require.NoError(t, err)

	np.PlayerID = xavi.ID
	np.Concept = payment.ConceptEquipment
	np.Amount = 3000
	np.Status = payment.StatusPaid
	kit, err := svc.Create(ctx, boss.ID, np)
	require.NoError(t, err)

	t.Run("scope", func(t *testing.T) {
		_, err := svc.Get(ctx, kit.ID, testutil.OwnScope(kid))
		assert.Equal(t, payment.ErrNotFound, err)
		_, total, err := svc.List(ctx, parseParams(t), testutil.OwnScope(kid))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		_, total, err = svc.List(ctx, parseParams(t), testutil.OwnScope(other))
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("revenue", func(t *testing.T) {
		report, err := svc.Revenue(ctx, payment.RevenueFilter{})
		require.NoError(t, err)
		assert.Equal(t, payment.RevenueRow{Paid: 7500, Pending: 4500, Count: 3}, report.Totals)
		require.Len(t, report.ByMonth, 2)
		assert.Equal(t, "2024-01", report.ByMonth[0].Month)
		assert.Equal(t, int64(4500), report.ByMonth[0].Paid)
		assert.Equal(t, "2024-02", report.ByMonth[1].Month)
		assert.Equal(t, int64(3000), report.ByMonth[1].Paid)
		assert.Equal(t, int64(4500), report.ByMonth[1].Pending)
		require.Len(t, report.ByConcept, 2)
		assert.Equal(t, payment.ConceptMonthlyFee, report.ByConcept[0].Concept)
		assert.Equal(t, 2, report.ByConcept[0].Count)

		report, err = svc.Revenue(ctx, payment.RevenueFilter{DateFrom: "2024-02-01"})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Totals.Count)

		// refunds & cancellations
		_, err = svc.Update(ctx, kit.ID, payment.UpdatePayment{Status: payment.StatusRefunded}, core.Unrestricted)
		require.NoError(t, err)
		_, err = svc.SetActive(ctx, jan.ID, false, core.Unrestricted)
		require.NoError(t, err)
		report, err = svc.Revenue(ctx, payment.RevenueFilter{})
		require.NoError(t, err)
		assert.Equal(t, payment.RevenueRow{Pending: 4500, Refunded: 3000, Count: 2}, report.Totals)

		_, err = svc.Revenue(ctx, payment.RevenueFilter{DateFrom: "2024-02-01", DateTo: "2024-01-01"})
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "date_to", vErr.Fields[0].Field)
	})

	t.Run("receipt", func(t *testing.T) {
		rcpt, err := svc.Receipt(ctx, jan.ID, testutil.OwnScope(kid))
		require.NoError(t, err)
		assert.Equal(t, "Soka", rcpt.AcademyName)
		assert.Equal(t, "Leo Messi", rcpt.PlayerName)
		assert.Equal(t, "Boss", rcpt.RecordedBy)
		assert.Equal(t, jan.ID, rcpt.Payment.ID)

		_, err = svc.Receipt(ctx, kit.ID, testutil.OwnScope(kid))
		assert.Equal(t, payment.ErrNotFound, err)
	})

	t.Run("mail receipt", func(t *testing.T) {
		emailsvc.ResetSentMessages()

		to, err := svc.MailReceipt(ctx, jan.ID, core.Unrestricted, textRenderer{})
		require.NoError(t, err)
		assert.Equal(t, "kid@soka.test", to.Address)

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "kid@soka.test", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "45.00")
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, fmt.Sprintf("receipt-%d.pdf", jan.ID), sent[0].Attachments[0].Filename)
		assert.Equal(t, "text/plain", sent[0].Attachments[0].ContentType)

		// xavi has no account
		_, err = svc.MailReceipt(ctx, kit.ID, core.Unrestricted, textRenderer{})
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "player_id", vErr.Fields[0].Field)
		assert.Len(t, emailsvc.SentMessages(), 1)
	})
}

type textRenderer struct{}

func (textRenderer) ContentType() string { return "text/plain" }

func (textRenderer) Render(w io.Writer, r payment.Receipt) error {
	_, err := fmt.Fprintf(w, "%s receipt #%d", r.AcademyName, r.Payment.ID)
	return err
}
