package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
	emailsvc "github.com/trezcool/soka/services/email"
	logsvc "github.com/trezcool/soka/services/logger"
	receiptsvc "github.com/trezcool/soka/services/receipt"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

type testEnv struct {
	srv     Server
	db      *sqlx.DB
	conf    *core.Config
	sessSvc session.Service

	usrRepo       user.Repository
	teamRepo      team.Repository
	playerRepo    player.Repository
	valuationRepo valuation.Repository
	trainingRepo  training.Repository
	bookingRepo   booking.Repository
	paymentRepo   payment.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	db := testutil.PrepareDB(t)
	emailsvc.ResetSentMessages()

	env := &testEnv{
		db:            db,
		conf:          conf,
		usrRepo:       sqlxrepos.NewUserRepository(db),
		teamRepo:      sqlxrepos.NewTeamRepository(db),
		playerRepo:    sqlxrepos.NewPlayerRepository(db),
		valuationRepo: sqlxrepos.NewValuationRepository(db),
		trainingRepo:  sqlxrepos.NewTrainingRepository(db),
		bookingRepo:   sqlxrepos.NewBookingRepository(db),
		paymentRepo:   sqlxrepos.NewPaymentRepository(db),
	}

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(db, env.usrRepo, mailSvc, conf)
	env.sessSvc = session.NewService(db, sqlxrepos.NewSessionRepository(db))
	teamSvc := team.NewService(db, env.teamRepo, env.usrRepo)
	playerSvc := player.NewService(db, env.playerRepo, env.usrRepo, teamSvc)

	env.srv = NewServer(&Options{
		Conf:         conf,
		Logger:       logsvc.NewRollbarLogger(io.Discard, conf),
		Validate:     validate,
		Translator:   translator,
		Policy:       access.DefaultPolicy,
		UserSvc:      usrSvc,
		SessionSvc:   env.sessSvc,
		TeamSvc:      teamSvc,
		PlayerSvc:    playerSvc,
		ValuationSvc: valuation.NewService(db, env.valuationRepo, playerSvc),
		TrainingSvc:  training.NewService(db, env.trainingRepo, teamSvc, playerSvc),
		BookingSvc:   booking.NewService(db, env.bookingRepo, teamSvc),
		PaymentSvc:   payment.NewService(env.paymentRepo, playerSvc, env.usrRepo, mailSvc, conf),
		Receipts:     receiptsvc.NewPDFRenderer(),
	})
	return env
}

// createUser creates an active user whose password is their username.
func (env *testEnv) createUser(t *testing.T, uname, role string) user.User {
	t.Helper()
	return testutil.CreateUser(t, env.usrRepo, uname, uname, uname+"@soka.test", "", role, true)
}

// getToken opens a session for usr, the way a login does.
func (env *testEnv) getToken(t *testing.T, usr user.User, origIat ...int64) string {
	t.Helper()
	sess, err := env.sessSvc.Open(context.Background(), usr.ID, env.conf.Server.JWTExpiration)
	require.NoError(t, err)
	token, err := generateToken(newJWTConfig(env.conf), newClaims(env.conf, usr, sess, origIat...))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body ...interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if len(body) > 0 {
		switch b := body[0].(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantErr  string // checked when set
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.body != nil {
				rec = env.do(t, tt.method, tt.path, tt.token, tt.body)
			} else {
				rec = env.do(t, tt.method, tt.path, tt.token)
			}
			if !assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String()) {
				return
			}
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeErr(t, rec).Error)
			}
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) httpErr {
	t.Helper()
	var e httpErr
	decode(t, rec, &e)
	return e
}

// listPage is the listing envelope, items decoded loosely.
type listPage struct {
	Items []map[string]interface{}
	Total int
	Page  int
	Limit int
	Pages int
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder, resource string) listPage {
	t.Helper()
	var raw map[string]json.RawMessage
	decode(t, rec, &raw)

	var page listPage
	require.Contains(t, raw, resource)
	require.NoError(t, json.Unmarshal(raw[resource], &page.Items))
	require.NoError(t, json.Unmarshal(raw["total"], &page.Total))
	require.NoError(t, json.Unmarshal(raw["page"], &page.Page))
	require.NoError(t, json.Unmarshal(raw["limit"], &page.Limit))
	require.NoError(t, json.Unmarshal(raw["pages"], &page.Pages))
	return page
}

func ids(items []map[string]interface{}) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, int64(it["id"].(float64)))
	}
	return out
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func boolPtr(b bool) *bool { return &b }

func TestServer_home(t *testing.T) {
	env := setup(t)
	rec := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Soka API!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
