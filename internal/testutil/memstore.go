package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	joinrequeststore "github.com/dalemusser/crmhub/internal/app/store/joinrequests"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/normalize"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemUsers is an in-memory stand-in for userstore.Store with the same
// sentinel errors, version compare-and-swap and membership checks.
type MemUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.User

	// BeforeSave, when set, runs inside Save before the version check. Tests
	// use it to simulate a concurrent writer.
	BeforeSave func(u *models.User)
	// Saves counts successful saves.
	Saves int
}

func NewMemUsers() *MemUsers {
	return &MemUsers{byID: map[primitive.ObjectID]models.User{}}
}

func cloneUser(u models.User) models.User {
	u.Companies = append([]models.Membership(nil), u.Companies...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

// Put stores u as-is (bypassing validation); handy for seeding odd states.
func (m *MemUsers) Put(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Version == 0 {
		u.Version = 1
	}
	if u.DisplayNameCI == "" {
		u.DisplayNameCI = text.Fold(u.DisplayName)
	}
	m.byID[u.ID] = cloneUser(u)
	return cloneUser(u)
}

func (m *MemUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (m *MemUsers) GetBySubject(_ context.Context, subjectID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.SubjectID == subjectID {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, userstore.ErrNotFound
}

func (m *MemUsers) emailTaken(email string, except primitive.ObjectID) bool {
	for id, u := range m.byID {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (m *MemUsers) Create(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	if u.GlobalRole == "" {
		u.GlobalRole = models.GlobalRoleUser
	}
	if u.Companies == nil {
		u.Companies = []models.Membership{}
	}
	if err := userstore.CheckMemberships(u.Companies); err != nil {
		return models.User{}, err
	}
	for _, other := range m.byID {
		if other.SubjectID == u.SubjectID {
			return models.User{}, userstore.ErrDuplicate
		}
	}
	if m.emailTaken(u.Email, primitive.NilObjectID) {
		return models.User{}, userstore.ErrDuplicate
	}
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.IsActive = true
	u.Version = 1
	u.CreatedAt, u.UpdatedAt = now, now
	m.byID[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (m *MemUsers) Save(_ context.Context, u *models.User) error {
	if m.BeforeSave != nil {
		m.BeforeSave(u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := userstore.CheckMemberships(u.Companies); err != nil {
		return err
	}
	cur, ok := m.byID[u.ID]
	if !ok || cur.Version != u.Version {
		return userstore.ErrVersionConflict
	}
	email := normalize.Email(u.Email)
	if m.emailTaken(email, u.ID) {
		return userstore.ErrDuplicate
	}
	next := cloneUser(*u)
	next.Email = email
	next.DisplayNameCI = text.Fold(next.DisplayName)
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	m.byID[u.ID] = next
	m.Saves++
	*u = cloneUser(next)
	return nil
}

// Bump increments the stored version of id, as a concurrent writer would.
func (m *MemUsers) Bump(id primitive.ObjectID, fn func(u *models.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	if fn != nil {
		fn(&u)
	}
	u.Version++
	m.byID[id] = u
}

func (m *MemUsers) ListSuperAdmins(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.byID {
		if u.GlobalRole == models.GlobalRoleSuperAdmin {
			out = append(out, cloneUser(u))
		}
	}
	sortUsers(out)
	return out, nil
}

func (m *MemUsers) ListByCompany(_ context.Context, companyID primitive.ObjectID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.byID {
		if u.IsActive && u.ActiveMembership(companyID) >= 0 {
			out = append(out, cloneUser(u))
		}
	}
	sortUsers(out)
	return out, nil
}

func (m *MemUsers) Search(_ context.Context, f userstore.SearchFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := text.Fold(f.Query)
	var out []models.User
	for _, u := range m.byID {
		if !f.IncludeInactive && !u.IsActive {
			continue
		}
		if q != "" && !strings.HasPrefix(u.DisplayNameCI, q) && !strings.HasPrefix(u.Email, normalize.Email(f.Query)) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sortUsers(out)
	return window(out, f.Offset, f.Limit), nil
}

func (m *MemUsers) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return userstore.ErrNotFound
	}
	u.IsActive = active
	u.Version++
	m.byID[id] = u
	return nil
}

func sortUsers(us []models.User) {
	sort.Slice(us, func(i, j int) bool {
		if us[i].DisplayNameCI != us[j].DisplayNameCI {
			return us[i].DisplayNameCI < us[j].DisplayNameCI
		}
		return us[i].ID.Hex() < us[j].ID.Hex()
	})
}

// MemCompanies is an in-memory stand-in for companystore.Store.
type MemCompanies struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Company
}

func NewMemCompanies() *MemCompanies {
	return &MemCompanies{byID: map[primitive.ObjectID]models.Company{}}
}

func (m *MemCompanies) Create(_ context.Context, co models.Company) (models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co.Name = normalize.Name(co.Name)
	if co.Name == "" {
		return models.Company{}, companystore.ErrNameRequired
	}
	settings, err := companystore.CleanSettings(co.Settings)
	if err != nil {
		return models.Company{}, err
	}
	now := time.Now().UTC()
	co.ID = primitive.NewObjectID()
	co.NameCI = text.Fold(co.Name)
	co.Settings = settings
	co.IsActive = true
	co.CreatedAt, co.UpdatedAt = now, now
	m.byID[co.ID] = co
	return co, nil
}

func (m *MemCompanies) GetByID(_ context.Context, id primitive.ObjectID) (models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co, ok := m.byID[id]
	if !ok {
		return models.Company{}, companystore.ErrNotFound
	}
	return co, nil
}

func (m *MemCompanies) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Company
	for _, id := range ids {
		if co, ok := m.byID[id]; ok {
			out = append(out, co)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return out, nil
}

func (m *MemCompanies) UpdateSettings(_ context.Context, id primitive.ObjectID, s models.CompanySettings) (models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co, ok := m.byID[id]
	if !ok {
		return models.Company{}, companystore.ErrNotFound
	}
	clean, err := companystore.CleanSettings(s)
	if err != nil {
		return models.Company{}, err
	}
	co.Settings = clean
	co.UpdatedAt = time.Now().UTC()
	m.byID[id] = co
	return co, nil
}

func (m *MemCompanies) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	co, ok := m.byID[id]
	if !ok {
		return companystore.ErrNotFound
	}
	co.IsActive = active
	m.byID[id] = co
	return nil
}

func (m *MemCompanies) List(_ context.Context, f companystore.ListFilter) ([]models.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := text.Fold(f.Query)
	var out []models.Company
	for _, co := range m.byID {
		if !f.IncludeInactive && !co.IsActive {
			continue
		}
		if q != "" && !strings.HasPrefix(co.NameCI, q) {
			continue
		}
		out = append(out, co)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return window(out, f.Offset, f.Limit), nil
}

// window applies skip/limit the way the Mongo stores do; limit <= 0 means
// no limit.
func window[T any](rows []T, offset, limit int64) []T {
	if offset >= int64(len(rows)) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < int64(len(rows)) {
		rows = rows[:limit]
	}
	return rows
}

// MemJoinRequests is an in-memory stand-in for joinrequeststore.Store.
type MemJoinRequests struct {
	mu  sync.Mutex
	all []models.JoinRequest
}

func NewMemJoinRequests() *MemJoinRequests {
	return &MemJoinRequests{}
}

func (m *MemJoinRequests) Create(_ context.Context, userID, companyID primitive.ObjectID, role models.Role) (models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, jr := range m.all {
		if jr.UserID == userID && jr.CompanyID == companyID && jr.Status == models.JoinPending {
			return models.JoinRequest{}, joinrequeststore.ErrDuplicate
		}
	}
	jr := models.JoinRequest{
		ID:            primitive.NewObjectID(),
		UserID:        userID,
		CompanyID:     companyID,
		RequestedRole: role,
		Status:        models.JoinPending,
		RequestedAt:   time.Now().UTC(),
	}
	m.all = append(m.all, jr)
	return jr, nil
}

func (m *MemJoinRequests) FindPending(_ context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, jr := range m.all {
		if jr.UserID == userID && jr.CompanyID == companyID && jr.Status == models.JoinPending {
			return jr, nil
		}
	}
	return models.JoinRequest{}, joinrequeststore.ErrNotFound
}

func (m *MemJoinRequests) FindLatest(_ context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.all) - 1; i >= 0; i-- {
		jr := m.all[i]
		if jr.UserID == userID && jr.CompanyID == companyID {
			return jr, nil
		}
	}
	return models.JoinRequest{}, joinrequeststore.ErrNotFound
}

func (m *MemJoinRequests) ListPending(_ context.Context, companyID primitive.ObjectID) ([]models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JoinRequest
	for _, jr := range m.all {
		if jr.CompanyID == companyID && jr.Status == models.JoinPending {
			out = append(out, jr)
		}
	}
	return out, nil
}

func (m *MemJoinRequests) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JoinRequest
	for i := len(m.all) - 1; i >= 0; i-- {
		if m.all[i].UserID == userID {
			out = append(out, m.all[i])
		}
	}
	return out, nil
}

func (m *MemJoinRequests) Transition(_ context.Context, id primitive.ObjectID, to models.JoinStatus, handledBy primitive.ObjectID) (models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.all {
		if m.all[i].ID != id {
			continue
		}
		if m.all[i].Status != models.JoinPending {
			return models.JoinRequest{}, joinrequeststore.ErrNotPending
		}
		now := time.Now().UTC()
		hb := handledBy
		m.all[i].Status = to
		m.all[i].HandledAt = &now
		m.all[i].HandledBy = &hb
		return m.all[i], nil
	}
	return models.JoinRequest{}, joinrequeststore.ErrNotFound
}

func (m *MemJoinRequests) Reopen(_ context.Context, id, handledBy primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.all {
		jr := &m.all[i]
		if jr.ID == id && jr.Status != models.JoinPending && jr.HandledBy != nil && *jr.HandledBy == handledBy {
			jr.Status = models.JoinPending
			jr.HandledAt = nil
			jr.HandledBy = nil
		}
	}
	return nil
}

// InlineTx runs fn directly; it satisfies access.Transactor in tests.
type InlineTx struct{}

func (InlineTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
