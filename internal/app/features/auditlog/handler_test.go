package auditlog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/crmhub/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/store/audit"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/crmhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fakeEvents returns canned events honoring Offset and Limit, and keeps the
// last filter it saw.
type fakeEvents struct {
	mu     sync.Mutex
	events []audit.Event
	last   audit.QueryFilter
	err    error
}

func (f *fakeEvents) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = filter
	if f.err != nil {
		return nil, f.err
	}
	rows := f.events
	if int(filter.Offset) >= len(rows) {
		return nil, nil
	}
	rows = rows[filter.Offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(rows) {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

type listBody struct {
	Events []struct {
		EventType  string `json:"event_type"`
		ActorEmail string `json:"actor_email"`
		UserEmail  string `json:"user_email"`
	} `json:"events"`
	Range struct {
		HasNext   bool `json:"has_next"`
		NextStart int  `json:"next_start"`
	} `json:"range"`
}

type fixture struct {
	env     *testutil.AccessEnv
	events  *fakeEvents
	company http.Handler
	console http.Handler
	co      models.Company
	admin   *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewAccessEnv()
	co := env.Company(t, "Acme")
	admin := env.User(t, "admin@acme.test", models.Membership{CompanyID: co.ID, Role: models.RoleCompanyAdmin, IsActive: true})
	env.User(t, "mgr@acme.test", models.Membership{CompanyID: co.ID, Role: models.RoleManager, IsActive: true})
	env.SuperAdmin(t, "root@example.com")

	events := &fakeEvents{}
	h := auditlog.NewHandler(events, env.Users, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	mw := env.Middleware()
	return &fixture{
		env:     env,
		events:  events,
		company: env.CompanyScoped(auditlog.CompanyRoutes(h, mw)),
		console: auditlog.PlatformRoutes(h, mw),
		co:      co,
		admin:   admin,
	}
}

func (f *fixture) companyGet(target, email string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r := testutil.InCompany(testutil.Bearer(httptest.NewRequest("GET", target, nil), email), f.co.ID)
	f.company.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) consoleGet(target, email string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.console.ServeHTTP(rec, testutil.Bearer(httptest.NewRequest("GET", target, nil), email))
	return rec
}

func event(kind string, actor *primitive.ObjectID) audit.Event {
	return audit.Event{
		ID:        primitive.NewObjectID(),
		Timestamp: time.Now(),
		Category:  audit.CategoryAdmin,
		EventType: kind,
		ActorID:   actor,
		Success:   true,
	}
}

func TestServeCompanyEvents_ScopedToActiveCompany(t *testing.T) {
	f := setup(t)
	adminID := f.admin.ID
	ghost := primitive.NewObjectID()
	f.events.events = []audit.Event{
		event(audit.EventMemberRoleChanged, &adminID),
		event(audit.EventJoinApproved, &ghost),
	}

	rec := f.companyGet("/?category=admin&since=2026-01-01", "admin@acme.test")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body listBody
	testutil.DecodeJSON(t, rec, &body)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "admin@acme.test", body.Events[0].ActorEmail)
	assert.Empty(t, body.Events[1].ActorEmail, "unknown actor resolves to no email")

	require.NotNil(t, f.events.last.CompanyID)
	assert.Equal(t, f.co.ID, *f.events.last.CompanyID)
	assert.Equal(t, audit.CategoryAdmin, f.events.last.Category)
	require.NotNil(t, f.events.last.StartTime)
	assert.Equal(t, 2026, f.events.last.StartTime.Year())
}

func TestServeCompanyEvents_AdminOnly(t *testing.T) {
	f := setup(t)
	rec := f.companyGet("/", "mgr@acme.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeCompanyEvents_InvalidFilters(t *testing.T) {
	f := setup(t)
	for _, target := range []string{
		"/?category=billing",
		"/?since=yesterday",
		"/?since=2026-05-02&until=2026-05-01",
	} {
		rec := f.companyGet(target, "admin@acme.test")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestServeCompanyEvents_UntilCoversWholeDay(t *testing.T) {
	f := setup(t)
	rec := f.companyGet("/?until=2026-05-01", "admin@acme.test")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.events.last.EndTime)
	end := f.events.last.EndTime.UTC()
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 1, end.Day())
}

func TestServeCompanyEvents_Paged(t *testing.T) {
	f := setup(t)
	for i := 0; i < 3; i++ {
		f.events.events = append(f.events.events, event(audit.EventMemberRemoved, nil))
	}

	rec := f.companyGet("/?limit=2", "admin@acme.test")
	var body listBody
	testutil.DecodeJSON(t, rec, &body)
	assert.Len(t, body.Events, 2)
	assert.True(t, body.Range.HasNext)
	assert.Equal(t, 3, body.Range.NextStart)
	assert.EqualValues(t, 3, f.events.last.Limit, "one row of look-ahead")
}

func TestServeCompanyEvents_QueryFailure(t *testing.T) {
	f := setup(t)
	f.events.err = errors.New("mongo down")
	rec := f.companyGet("/", "admin@acme.test")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServePlatformEvents(t *testing.T) {
	f := setup(t)
	f.events.events = []audit.Event{event(audit.EventCompanyDeactivated, nil)}

	rec := f.consoleGet("/?company_id="+f.co.ID.Hex()+"&user_id="+f.admin.ID.Hex(), "root@example.com")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.events.last.CompanyID)
	require.NotNil(t, f.events.last.UserID)
	assert.Equal(t, f.co.ID, *f.events.last.CompanyID)
	assert.Equal(t, f.admin.ID, *f.events.last.UserID)

	rec = f.consoleGet("/", "root@example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, f.events.last.CompanyID, "no company filter unless asked")
}

func TestServePlatformEvents_Rejections(t *testing.T) {
	f := setup(t)

	rec := f.consoleGet("/", "admin@acme.test")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.consoleGet("/?user_id=nope", "root@example.com")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
