package payment

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sort"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("payment not found")

	errInvalidPayment = errors.New("invalid payment")
	invalidPlayerText = "must reference an existing player"
	invalidRangeText  = "must not be before date_from"
	noAccountText     = "the player has no active account to mail the receipt to"
)

// RevenueEntry is a group of payments sharing a month, a concept and a status.
type RevenueEntry struct {
	Month   string `db:"month"`
	Concept string `db:"concept"`
	Status  string `db:"status"`
	Amount  int64  `db:"amount"`
	Count   int    `db:"count"`
}

type (
	Repository interface {
		Create(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Payment, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Payment, error)
		Update(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		// Revenue groups the active payments paid on [from, to] (open bounds when empty).
		Revenue(ctx context.Context, from, to string, exec ...core.DBExecutor) ([]RevenueEntry, error)
	}

	Service interface {
		Create(ctx context.Context, recordedBy int64, np NewPayment) (Payment, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Payment, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Payment, error)
		Update(ctx context.Context, id int64, up UpdatePayment, scope core.Scope) (Payment, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Payment, error)
		Revenue(ctx context.Context, rf RevenueFilter) (RevenueReport, error)
		Receipt(ctx context.Context, id int64, scope core.Scope) (Receipt, error)
		// MailReceipt renders the receipt & mails it to the player's account; it returns the recipient.
		MailReceipt(ctx context.Context, id int64, scope core.Scope, renderer ReceiptRenderer) (mail.Address, error)
	}

	service struct {
		repo      Repository
		playerSvc player.Service
		usrRepo   user.Repository
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, playerSvc player.Service, usrRepo user.Repository, mailSvc core.EmailService, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(playerSvc, "playerSvc"),
		vala.IsNotNil(usrRepo, "usrRepo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{repo: repo, playerSvc: playerSvc, usrRepo: usrRepo, mailSvc: mailSvc, conf: conf}
}

func (svc *service) Create(ctx context.Context, recordedBy int64, np NewPayment) (Payment, error) {
	if _, err := svc.playerSvc.Get(ctx, np.PlayerID, core.Unrestricted); err != nil {
		if core.IsNotFound(err) {
			return Payment{}, core.NewValidationError(errInvalidPayment, core.FieldError{Field: "player_id", Error: invalidPlayerText})
		}
		return Payment{}, errors.Wrap(err, "finding player")
	}

	now := core.Now()
	p := Payment{
		PlayerID:   np.PlayerID,
		Amount:     np.Amount,
		Concept:    np.Concept,
		Method:     np.Method,
		Status:     np.Status,
		PaidOn:     np.PaidOn,
		Reference:  np.Reference,
		Notes:      np.Notes,
		RecordedBy: recordedBy,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.Create(ctx, p)
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Payment, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Payment, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) Update(ctx context.Context, id int64, up UpdatePayment, scope core.Scope) (Payment, error) {
	p, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Payment{}, err
	}
	p = up.Apply(p)
	p.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, p)
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Payment, error) {
	p, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Payment{}, err
	}
	if p.IsActive == active {
		return p, nil
	}
	p.IsActive = active
	p.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, p)
}

// Revenue sums up the active payments, in total, per month and per concept.
func (svc *service) Revenue(ctx context.Context, rf RevenueFilter) (RevenueReport, error) {
	if rf.DateFrom != "" && rf.DateTo != "" && rf.DateTo < rf.DateFrom {
		return RevenueReport{}, core.NewValidationError(errInvalidPayment, core.FieldError{Field: "date_to", Error: invalidRangeText})
	}
	entries, err := svc.repo.Revenue(ctx, rf.DateFrom, rf.DateTo)
	if err != nil {
		return RevenueReport{}, errors.Wrap(err, "querying revenue")
	}

	report := RevenueReport{
		DateFrom:  rf.DateFrom,
		DateTo:    rf.DateTo,
		ByMonth:   []MonthRevenue{},
		ByConcept: []ConceptRevenue{},
	}
	months := make(map[string]*RevenueRow)
	concepts := make(map[string]*RevenueRow)
	for _, e := range entries {
		report.Totals.Add(e.Status, e.Amount, e.Count)
		if _, ok := months[e.Month]; !ok {
			months[e.Month] = &RevenueRow{Key: e.Month}
		}
		months[e.Month].Add(e.Status, e.Amount, e.Count)
		if _, ok := concepts[e.Concept]; !ok {
			concepts[e.Concept] = &RevenueRow{Key: e.Concept}
		}
		concepts[e.Concept].Add(e.Status, e.Amount, e.Count)
	}

	for _, row := range months {
		report.ByMonth = append(report.ByMonth, MonthRevenue{Month: row.Key, RevenueRow: *row})
	}
	sort.Slice(report.ByMonth, func(i, j int) bool { return report.ByMonth[i].Month < report.ByMonth[j].Month })
	for _, row := range concepts {
		report.ByConcept = append(report.ByConcept, ConceptRevenue{Concept: row.Key, RevenueRow: *row})
	}
	sort.Slice(report.ByConcept, func(i, j int) bool {
		if report.ByConcept[i].Paid != report.ByConcept[j].Paid {
			return report.ByConcept[i].Paid > report.ByConcept[j].Paid
		}
		return report.ByConcept[i].Concept < report.ByConcept[j].Concept
	})
	return report, nil
}

// Receipt gathers the receipt of a visible payment.
func (svc *service) Receipt(ctx context.Context, id int64, scope core.Scope) (Receipt, error) {
	p, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Receipt{}, err
	}
	pl, err := svc.playerSvc.Get(ctx, p.PlayerID, core.Unrestricted)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "finding player")
	}
	rcpt := Receipt{
		AcademyName: svc.conf.AppName,
		Payment:     p,
		PlayerName:  pl.FullName(),
		IssuedAt:    core.Now(),
	}
	if usr, err := svc.usrRepo.Get(ctx, user.GetFilter{ID: p.RecordedBy, Scope: core.Unrestricted}); err == nil {
		rcpt.RecordedBy = usr.Name
	} else if !core.IsNotFound(err) {
		return Receipt{}, errors.Wrap(err, "finding recorder")
	}
	return rcpt, nil
}

func (svc *service) MailReceipt(ctx context.Context, id int64, scope core.Scope, renderer ReceiptRenderer) (mail.Address, error) {
	rcpt, err := svc.Receipt(ctx, id, scope)
	if err != nil {
		return mail.Address{}, err
	}
	pl, err := svc.playerSvc.Get(ctx, rcpt.Payment.PlayerID, core.Unrestricted)
	if err != nil {
		return mail.Address{}, errors.Wrap(err, "finding player")
	}
	noAccount := core.NewValidationError(errInvalidPayment, core.FieldError{Field: "player_id", Error: noAccountText})
	if pl.UserID == nil {
		return mail.Address{}, noAccount
	}
	usr, err := svc.usrRepo.Get(ctx, user.GetFilter{ID: *pl.UserID, Scope: core.Unrestricted})
	if err != nil {
		if core.IsNotFound(err) {
			return mail.Address{}, noAccount
		}
		return mail.Address{}, errors.Wrap(err, "finding player account")
	}
	if !usr.IsActive {
		return mail.Address{}, noAccount
	}

	buf := new(bytes.Buffer)
	if err = renderer.Render(buf, rcpt); err != nil {
		return mail.Address{}, errors.Wrap(err, "rendering receipt")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Payment receipt #%d", rcpt.Payment.ID),
		TemplateName: "payment_receipt",
		TemplateData: map[string]interface{}{
			"Name":      usr.Name,
			"Player":    rcpt.PlayerName,
			"Amount":    FormatAmount(rcpt.Payment.Amount),
			"Concept":   rcpt.Payment.Concept,
			"PaidOn":    rcpt.Payment.PaidOn,
			"Reference": rcpt.Payment.Reference,
		},
	}
	if err = msg.Attach(buf, fmt.Sprintf("receipt-%d.pdf", rcpt.Payment.ID), renderer.ContentType()); err != nil {
		return mail.Address{}, errors.Wrap(err, "attaching receipt")
	}
	svc.mailSvc.SendMessages(msg)
	return msg.To[0], nil
}
