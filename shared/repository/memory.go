package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

// memoryStore keeps every table in maps guarded by one lock, so cascades such as
// organization deactivation behave like the SQL transactions.
type memoryStore struct {
	mu sync.RWMutex

	last time.Time

	organizations map[uuid.UUID]models.Organization
	shops         map[uuid.UUID]models.Shop
	users         map[uuid.UUID]models.User
	agents        map[uuid.UUID]models.Agent
	settings      map[uuid.UUID]models.Setting // keyed by user
	messages      []models.ChatMessage
	attempts      []models.LoginAttempt
}

// NewMemory returns repositories backed by process memory.
func NewMemory() Repositories {
	s := &memoryStore{
		organizations: map[uuid.UUID]models.Organization{},
		shops:         map[uuid.UUID]models.Shop{},
		users:         map[uuid.UUID]models.User{},
		agents:        map[uuid.UUID]models.Agent{},
		settings:      map[uuid.UUID]models.Setting{},
	}
	return Repositories{
		Agents:        &memoryAgents{s},
		Organizations: &memoryOrganizations{s},
		Shops:         &memoryShops{s},
		Users:         &memoryUsers{s},
		Settings:      &memorySettings{s},
		Chat:          &memoryChat{s},
		LoginAttempts: &memoryLoginAttempts{s},
	}
}

// now returns strictly increasing timestamps so creation order is observable.
// Callers hold the write lock.
func (s *memoryStore) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

type fieldFunc[T any] func(*T) string

func uuidField(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func timeField(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000")
}

// listMemory filters, searches, sorts and pages items the way the gorm query helpers do.
func listMemory[T any](items []T, params query.FilterParams, filters, sorts map[string]fieldFunc[T], search []fieldFunc[T]) ([]T, int64) {
	out := make([]T, 0, len(items))
	needle := strings.ToLower(params.Search)

	for i := range items {
		item := &items[i]
		if !matchesFilters(item, params.Filters, filters) {
			continue
		}
		if needle != "" && !matchesSearch(item, needle, search) {
			continue
		}
		out = append(out, *item)
	}

	key, ok := sorts[params.Sort.Field]
	desc := params.Sort.Order != "asc"
	if !ok {
		key, desc = sorts["created_at"], true
	}
	if key != nil {
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return key(&out[i]) > key(&out[j])
			}
			return key(&out[i]) < key(&out[j])
		})
	}

	total := int64(len(out))
	return query.PageSlice(out, params.Page, params.Limit), total
}

func matchesFilters[T any](item *T, values map[string]string, filters map[string]fieldFunc[T]) bool {
	for field, want := range values {
		get, ok := filters[field]
		if !ok || want == "" {
			continue
		}
		got := get(item)
		if b, err := strconv.ParseBool(want); err == nil && (got == "true" || got == "false") {
			want = strconv.FormatBool(b)
		}
		if got != want {
			return false
		}
	}
	return true
}

func matchesSearch[T any](item *T, needle string, fields []fieldFunc[T]) bool {
	for _, get := range fields {
		if strings.Contains(strings.ToLower(get(item)), needle) {
			return true
		}
	}
	return false
}

// agents

var (
	memoryAgentFilters = map[string]fieldFunc[models.Agent]{
		"target_role":     func(a *models.Agent) string { return a.TargetRole },
		"is_active":       func(a *models.Agent) string { return strconv.FormatBool(a.IsActive) },
		"is_default":      func(a *models.Agent) string { return strconv.FormatBool(a.IsDefault) },
		"organization_id": func(a *models.Agent) string { return uuidField(a.OrganizationID) },
		"tone":            func(a *models.Agent) string { return a.Tone },
	}
	memoryAgentSorts = map[string]fieldFunc[models.Agent]{
		"name":       func(a *models.Agent) string { return strings.ToLower(a.Name) },
		"created_at": func(a *models.Agent) string { return timeField(a.CreatedAt) },
		"updated_at": func(a *models.Agent) string { return timeField(a.UpdatedAt) },
	}
	memoryAgentSearch = []fieldFunc[models.Agent]{
		func(a *models.Agent) string { return a.Name },
		func(a *models.Agent) string { return a.Description },
	}
)

type memoryAgents struct {
	s *memoryStore
}

func (r *memoryAgents) visible(filter access.AgentFilter) []models.Agent {
	var out []models.Agent
	for _, a := range r.s.agents {
		a := a
		if filter.Matches(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryAgents) List(_ context.Context, filter access.AgentFilter, params query.FilterParams) ([]models.Agent, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agents, total := listMemory(r.visible(filter), params, memoryAgentFilters, memoryAgentSorts, memoryAgentSearch)
	return agents, total, nil
}

func (r *memoryAgents) Get(_ context.Context, id uuid.UUID) (*models.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.agents[id]
	if !ok {
		return nil, translate("get agent", ErrNotFound)
	}
	return &a, nil
}

func (r *memoryAgents) FindDefault(_ context.Context, filter access.AgentFilter) (*models.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var global *models.Agent
	for _, a := range r.visible(filter) {
		a := a
		if !a.IsDefault {
			continue
		}
		if a.OrganizationID != nil {
			return &a, nil
		}
		if global == nil {
			global = &a
		}
	}
	if global == nil {
		return nil, translate("find default agent", ErrNotFound)
	}
	return global, nil
}

func (r *memoryAgents) FindOldest(_ context.Context, filter access.AgentFilter) (*models.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agents := r.visible(filter)
	if len(agents) == 0 {
		return nil, translate("find agent", ErrNotFound)
	}
	return &agents[0], nil
}

func (r *memoryAgents) Create(_ context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&agent.ID)
	if _, exists := r.s.agents[agent.ID]; exists {
		return translate("create agent", ErrConflict)
	}
	agent.CreatedAt = r.s.now()
	agent.UpdatedAt = agent.CreatedAt
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r *memoryAgents) Update(_ context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.agents[agent.ID]; !ok {
		return translate("update agent", ErrNotFound)
	}
	agent.UpdatedAt = r.s.now()
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r *memoryAgents) SetDefault(_ context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	target, ok := r.s.agents[agent.ID]
	if !ok {
		return translate("set default agent", ErrNotFound)
	}
	for id, a := range r.s.agents {
		if id != agent.ID && uuidField(a.OrganizationID) == uuidField(target.OrganizationID) && a.IsDefault {
			a.IsDefault = false
			r.s.agents[id] = a
		}
	}
	target.IsDefault = true
	r.s.agents[agent.ID] = target
	agent.IsDefault = true
	return nil
}

func (r *memoryAgents) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.agents[id]
	if !ok {
		return translate("deactivate agent", ErrNotFound)
	}
	a.IsActive, a.IsDefault = false, false
	a.UpdatedAt = r.s.now()
	r.s.agents[id] = a
	return nil
}

// organizations

var (
	memoryOrganizationFilters = map[string]fieldFunc[models.Organization]{
		"status": func(o *models.Organization) string { return o.Status },
		"slug":   func(o *models.Organization) string { return o.Slug },
	}
	memoryOrganizationSorts = map[string]fieldFunc[models.Organization]{
		"name":       func(o *models.Organization) string { return strings.ToLower(o.Name) },
		"slug":       func(o *models.Organization) string { return o.Slug },
		"created_at": func(o *models.Organization) string { return timeField(o.CreatedAt) },
		"updated_at": func(o *models.Organization) string { return timeField(o.UpdatedAt) },
	}
	memoryOrganizationSearch = []fieldFunc[models.Organization]{
		func(o *models.Organization) string { return o.Name },
		func(o *models.Organization) string { return o.Slug },
		func(o *models.Organization) string { return o.ContactEmail },
	}
)

type memoryOrganizations struct {
	s *memoryStore
}

func (r *memoryOrganizations) List(_ context.Context, params query.FilterParams, onlyID *uuid.UUID) ([]models.Organization, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var orgs []models.Organization
	for id, o := range r.s.organizations {
		if onlyID == nil || *onlyID == id {
			orgs = append(orgs, o)
		}
	}
	out, total := listMemory(orgs, params, memoryOrganizationFilters, memoryOrganizationSorts, memoryOrganizationSearch)
	return out, total, nil
}

func (r *memoryOrganizations) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.organizations[id]
	if !ok {
		return nil, translate("get organization", ErrNotFound)
	}
	return &o, nil
}

func (r *memoryOrganizations) GetBySlug(_ context.Context, slug string) (*models.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, o := range r.s.organizations {
		if o.Slug == slug {
			return &o, nil
		}
	}
	return nil, translate("get organization by slug", ErrNotFound)
}

func (r *memoryOrganizations) slugTaken(slug string, except uuid.UUID) bool {
	for id, o := range r.s.organizations {
		if id != except && o.Slug == slug {
			return true
		}
	}
	return false
}

func (r *memoryOrganizations) Create(_ context.Context, org *models.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&org.ID)
	if r.slugTaken(org.Slug, org.ID) {
		return translate("create organization", ErrConflict)
	}
	if org.Status == "" {
		org.Status = models.StatusActive
	}
	org.CreatedAt = r.s.now()
	org.UpdatedAt = org.CreatedAt
	r.s.organizations[org.ID] = *org
	return nil
}

func (r *memoryOrganizations) Update(_ context.Context, org *models.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.organizations[org.ID]; !ok {
		return translate("update organization", ErrNotFound)
	}
	if r.slugTaken(org.Slug, org.ID) {
		return translate("update organization", ErrConflict)
	}
	org.UpdatedAt = r.s.now()
	r.s.organizations[org.ID] = *org
	return nil
}

func (r *memoryOrganizations) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	org, ok := r.s.organizations[id]
	if !ok {
		return translate("deactivate organization", ErrNotFound)
	}
	now := r.s.now()
	org.Status, org.UpdatedAt = models.StatusInactive, now
	r.s.organizations[id] = org

	for shopID, shop := range r.s.shops {
		if shop.OrganizationID == id {
			shop.IsActive, shop.UpdatedAt = false, now
			r.s.shops[shopID] = shop
		}
	}
	for agentID, a := range r.s.agents {
		if a.OrganizationID != nil && *a.OrganizationID == id {
			a.IsActive, a.IsDefault, a.UpdatedAt = false, false, now
			r.s.agents[agentID] = a
		}
	}
	for userID, u := range r.s.users {
		if u.OrganizationID != nil && *u.OrganizationID == id {
			u.Status, u.UpdatedAt = models.StatusInactive, now
			r.s.users[userID] = u
		}
	}
	return nil
}

// shops

var (
	memoryShopFilters = map[string]fieldFunc[models.Shop]{
		"organization_id": func(s *models.Shop) string { return s.OrganizationID.String() },
		"is_active":       func(s *models.Shop) string { return strconv.FormatBool(s.IsActive) },
	}
	memoryShopSorts = map[string]fieldFunc[models.Shop]{
		"name":       func(s *models.Shop) string { return strings.ToLower(s.Name) },
		"created_at": func(s *models.Shop) string { return timeField(s.CreatedAt) },
		"updated_at": func(s *models.Shop) string { return timeField(s.UpdatedAt) },
	}
	memoryShopSearch = []fieldFunc[models.Shop]{
		func(s *models.Shop) string { return s.Name },
		func(s *models.Shop) string { return s.Slug },
		func(s *models.Shop) string { return s.Address },
	}
)

type memoryShops struct {
	s *memoryStore
}

func (r *memoryShops) List(_ context.Context, scope ShopScope, params query.FilterParams) ([]models.Shop, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var shops []models.Shop
	for id, shop := range r.s.shops {
		if scope.OrganizationID != nil && shop.OrganizationID != *scope.OrganizationID {
			continue
		}
		if scope.ShopID != nil && id != *scope.ShopID {
			continue
		}
		shops = append(shops, shop)
	}
	out, total := listMemory(shops, params, memoryShopFilters, memoryShopSorts, memoryShopSearch)
	return out, total, nil
}

func (r *memoryShops) Get(_ context.Context, id uuid.UUID) (*models.Shop, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	shop, ok := r.s.shops[id]
	if !ok {
		return nil, translate("get shop", ErrNotFound)
	}
	return &shop, nil
}

func (r *memoryShops) slugTaken(shop *models.Shop) bool {
	for id, other := range r.s.shops {
		if id != shop.ID && other.OrganizationID == shop.OrganizationID && other.Slug == shop.Slug {
			return true
		}
	}
	return false
}

func (r *memoryShops) Create(_ context.Context, shop *models.Shop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&shop.ID)
	if r.slugTaken(shop) {
		return translate("create shop", ErrConflict)
	}
	shop.CreatedAt = r.s.now()
	shop.UpdatedAt = shop.CreatedAt
	r.s.shops[shop.ID] = *shop
	return nil
}

func (r *memoryShops) Update(_ context.Context, shop *models.Shop) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.shops[shop.ID]; !ok {
		return translate("update shop", ErrNotFound)
	}
	if r.slugTaken(shop) {
		return translate("update shop", ErrConflict)
	}
	shop.UpdatedAt = r.s.now()
	r.s.shops[shop.ID] = *shop
	return nil
}

func (r *memoryShops) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	shop, ok := r.s.shops[id]
	if !ok {
		return translate("deactivate shop", ErrNotFound)
	}
	now := r.s.now()
	shop.IsActive, shop.UpdatedAt = false, now
	r.s.shops[id] = shop

	for userID, u := range r.s.users {
		if u.ShopID != nil && *u.ShopID == id {
			u.ShopID, u.UpdatedAt = nil, now
			r.s.users[userID] = u
		}
	}
	return nil
}

// users

var (
	memoryUserFilters = map[string]fieldFunc[models.User]{
		"role":            func(u *models.User) string { return u.Role },
		"status":          func(u *models.User) string { return u.Status },
		"organization_id": func(u *models.User) string { return uuidField(u.OrganizationID) },
		"shop_id":         func(u *models.User) string { return uuidField(u.ShopID) },
	}
	memoryUserSorts = map[string]fieldFunc[models.User]{
		"email":      func(u *models.User) string { return u.Email },
		"first_name": func(u *models.User) string { return strings.ToLower(u.FirstName) },
		"last_name":  func(u *models.User) string { return strings.ToLower(u.LastName) },
		"created_at": func(u *models.User) string { return timeField(u.CreatedAt) },
	}
	memoryUserSearch = []fieldFunc[models.User]{
		func(u *models.User) string { return u.Email },
		func(u *models.User) string { return u.FirstName },
		func(u *models.User) string { return u.LastName },
	}
)

type memoryUsers struct {
	s *memoryStore
}

func (r *memoryUsers) List(_ context.Context, scope UserScope, params query.FilterParams) ([]models.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var users []models.User
	for id, u := range r.s.users {
		if scope.OrganizationID != nil && (u.OrganizationID == nil || *u.OrganizationID != *scope.OrganizationID) {
			continue
		}
		if scope.UserID != nil && id != *scope.UserID {
			continue
		}
		users = append(users, u)
	}
	out, total := listMemory(users, params, memoryUserFilters, memoryUserSorts, memoryUserSearch)
	return out, total, nil
}

func (r *memoryUsers) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, translate("get user", ErrNotFound)
	}
	return &u, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, translate("get user by email", ErrNotFound)
}

func (r *memoryUsers) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range r.s.users {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *memoryUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&user.ID)
	if r.emailTaken(user.Email, user.ID) {
		return translate("create user", ErrConflict)
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return translate("update user", ErrNotFound)
	}
	if r.emailTaken(user.Email, user.ID) {
		return translate("update user", ErrConflict)
	}
	user.UpdatedAt = r.s.now()
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return translate("deactivate user", ErrNotFound)
	}
	u.Status, u.UpdatedAt = models.StatusInactive, r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *memoryUsers) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return translate("touch login", ErrNotFound)
	}
	u.LastLoginAt = &at
	r.s.users[id] = u
	return nil
}

// settings

type memorySettings struct {
	s *memoryStore
}

func (r *memorySettings) Get(_ context.Context, userID uuid.UUID) (*models.Setting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	setting, ok := r.s.settings[userID]
	if !ok {
		return nil, translate("get settings", ErrNotFound)
	}
	return &setting, nil
}

func (r *memorySettings) Save(_ context.Context, setting *models.Setting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if existing, ok := r.s.settings[setting.UserID]; ok {
		setting.ID, setting.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		ensureID(&setting.ID)
		setting.CreatedAt = now
	}
	setting.UpdatedAt = now
	r.s.settings[setting.UserID] = *setting
	return nil
}

// chat

type memoryChat struct {
	s *memoryStore
}

func (r *memoryChat) Create(_ context.Context, msg *models.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&msg.ID)
	if msg.Status == "" {
		msg.Status = models.MessageStatusSent
	}
	msg.CreatedAt = r.s.now()
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r *memoryChat) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.messages {
		if r.s.messages[i].ID == id {
			r.s.messages[i].Status = status
			return nil
		}
	}
	return nil
}

func (r *memoryChat) History(_ context.Context, userID, conversationID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.ChatMessage
	for _, m := range r.s.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memoryChat) Conversations(_ context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byID := map[uuid.UUID]*models.ConversationSummary{}
	var summaries []*models.ConversationSummary
	for _, m := range r.s.messages {
		if m.UserID != userID {
			continue
		}
		sum, ok := byID[m.ConversationID]
		if !ok {
			sum = &models.ConversationSummary{ConversationID: m.ConversationID}
			byID[m.ConversationID] = sum
			summaries = append(summaries, sum)
		}
		sum.AgentID = m.AgentID
		sum.LastMessage = m.Content
		sum.LastRole = m.Role
		sum.MessageCount++
		sum.UpdatedAt = m.CreatedAt
	}

	out := make([]models.ConversationSummary, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, *sum)
	}
	sortSummaries(out)
	return out, nil
}

func (r *memoryChat) DeleteConversation(_ context.Context, userID, conversationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.messages[:0]
	var deleted int64
	for _, m := range r.s.messages {
		if m.UserID == userID && m.ConversationID == conversationID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.s.messages = kept
	return deleted, nil
}

// login attempts

type memoryLoginAttempts struct {
	s *memoryStore
}

func (r *memoryLoginAttempts) Record(_ context.Context, attempt *models.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ensureID(&attempt.ID)
	attempt.CreatedAt = r.s.now()
	r.s.attempts = append(r.s.attempts, *attempt)
	return nil
}

func (r *memoryLoginAttempts) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]models.LoginAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.LoginAttempt
	for i := len(r.s.attempts) - 1; i >= 0; i-- {
		a := r.s.attempts[i]
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
