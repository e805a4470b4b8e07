package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// ── users ─────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailInUse
		}
	}
	r.seq++
	created := cloneUser(user)
	if created.ID == "" {
		created.ID = fmt.Sprintf("user-%d", r.seq)
	}
	r.users[created.ID] = cloneUser(created)
	return created, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && u.Email == user.Email {
			return nil, domain.ErrEmailInUse
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string, changedAt time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	return nil
}

func (r *stubUserRepo) Deactivate(_ context.Context, id string) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Active = false
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// ── subscriptions ─────────────────────────────────────────────────────────────

type stubSubscriptionRepo struct {
	byUser    map[string]*domain.Subscription
	updateErr error
	seq       int
}

func newStubSubscriptionRepo() *stubSubscriptionRepo {
	return &stubSubscriptionRepo{byUser: make(map[string]*domain.Subscription)}
}

func cloneSub(s *domain.Subscription) *domain.Subscription {
	clone := *s
	return &clone
}

func (r *stubSubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	if _, exists := r.byUser[sub.UserID]; exists {
		return nil, fmt.Errorf("duplicate subscription for %s", sub.UserID)
	}
	r.seq++
	created := cloneSub(sub)
	created.ID = fmt.Sprintf("sub-%d", r.seq)
	r.byUser[sub.UserID] = cloneSub(created)
	return created, nil
}

func (r *stubSubscriptionRepo) FindByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	s, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return cloneSub(s), nil
}

func (r *stubSubscriptionRepo) FindByStripeSubscriptionID(_ context.Context, id string) (*domain.Subscription, error) {
	for _, s := range r.byUser {
		if s.StripeSubscriptionID == id {
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (r *stubSubscriptionRepo) Update(_ context.Context, sub *domain.Subscription) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.byUser[sub.UserID]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	r.byUser[sub.UserID] = cloneSub(sub)
	return nil
}

// ── projects ──────────────────────────────────────────────────────────────────

type stubProjectRepo struct {
	projects map[string]*domain.Project
	members  map[string]map[string]*domain.ProjectMember // projectID -> userID -> member
	findErr  error
	seq      int
}

func newStubProjectRepo() *stubProjectRepo {
	return &stubProjectRepo{
		projects: make(map[string]*domain.Project),
		members:  make(map[string]map[string]*domain.ProjectMember),
	}
}

func (r *stubProjectRepo) CreateWithOwner(_ context.Context, p *domain.Project) (*domain.Project, error) {
	r.seq++
	created := *p
	created.ID = fmt.Sprintf("project-%d", r.seq)
	r.projects[created.ID] = &created
	r.members[created.ID] = map[string]*domain.ProjectMember{
		p.OwnerID: {ProjectID: created.ID, UserID: p.OwnerID, Role: domain.ProjectRoleAdmin},
	}
	out := created
	return &out, nil
}

func (r *stubProjectRepo) FindByID(_ context.Context, id string) (*domain.Project, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	out := *p
	return &out, nil
}

func (r *stubProjectRepo) ListForUser(_ context.Context, userID string) ([]domain.Project, error) {
	var out []domain.Project
	for id, p := range r.projects {
		if _, member := r.members[id][userID]; member || p.OwnerID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProjectRepo) Update(_ context.Context, p *domain.Project) (*domain.Project, error) {
	if _, ok := r.projects[p.ID]; !ok {
		return nil, domain.ErrProjectNotFound
	}
	stored := *p
	r.projects[p.ID] = &stored
	out := stored
	return &out, nil
}

func (r *stubProjectRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.projects[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(r.projects, id)
	delete(r.members, id)
	return nil
}

func (r *stubProjectRepo) FindMember(_ context.Context, projectID, userID string) (*domain.ProjectMember, error) {
	m, ok := r.members[projectID][userID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	out := *m
	return &out, nil
}

func (r *stubProjectRepo) ListMembers(_ context.Context, projectID string) ([]domain.ProjectMember, error) {
	var out []domain.ProjectMember
	for _, m := range r.members[projectID] {
		out = append(out, *m)
	}
	return out, nil
}

func (r *stubProjectRepo) AddMember(_ context.Context, m *domain.ProjectMember) (*domain.ProjectMember, error) {
	if _, ok := r.members[m.ProjectID][m.UserID]; ok {
		return nil, domain.ErrAlreadyMember
	}
	if r.members[m.ProjectID] == nil {
		r.members[m.ProjectID] = make(map[string]*domain.ProjectMember)
	}
	stored := *m
	r.members[m.ProjectID][m.UserID] = &stored
	out := stored
	return &out, nil
}

func (r *stubProjectRepo) UpdateMemberRole(_ context.Context, projectID, userID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	m, ok := r.members[projectID][userID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	m.Role = role
	out := *m
	return &out, nil
}

func (r *stubProjectRepo) RemoveMember(_ context.Context, projectID, userID string) error {
	if _, ok := r.members[projectID][userID]; !ok {
		return domain.ErrMemberNotFound
	}
	delete(r.members[projectID], userID)
	return nil
}

// seedProject stores a project owned by ownerID with extra members.
func (r *stubProjectRepo) seedProject(id, ownerID string, members map[string]domain.ProjectRole) {
	r.projects[id] = &domain.Project{ID: id, Name: id, OwnerID: ownerID}
	r.members[id] = map[string]*domain.ProjectMember{
		ownerID: {ProjectID: id, UserID: ownerID, Role: domain.ProjectRoleAdmin},
	}
	for userID, role := range members {
		r.members[id][userID] = &domain.ProjectMember{ProjectID: id, UserID: userID, Role: role}
	}
}

// ── tasks ─────────────────────────────────────────────────────────────────────

type stubTaskRepo struct {
	tasks    map[string]*domain.Task
	comments map[string][]domain.Comment
	seq      int
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{
		tasks:    make(map[string]*domain.Task),
		comments: make(map[string][]domain.Comment),
	}
}

func (r *stubTaskRepo) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	r.seq++
	created := *t
	created.ID = fmt.Sprintf("task-%d", r.seq)
	r.tasks[created.ID] = &created
	out := created
	return &out, nil
}

func (r *stubTaskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	out := *t
	return &out, nil
}

func (r *stubTaskRepo) ListByProject(_ context.Context, projectID string) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubTaskRepo) Update(_ context.Context, t *domain.Task) (*domain.Task, error) {
	if _, ok := r.tasks[t.ID]; !ok {
		return nil, domain.ErrTaskNotFound
	}
	stored := *t
	r.tasks[t.ID] = &stored
	out := stored
	return &out, nil
}

func (r *stubTaskRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *stubTaskRepo) AddComment(_ context.Context, c *domain.Comment) (*domain.Comment, error) {
	r.seq++
	created := *c
	created.ID = fmt.Sprintf("comment-%d", r.seq)
	r.comments[c.TaskID] = append(r.comments[c.TaskID], created)
	return &created, nil
}

func (r *stubTaskRepo) ListComments(_ context.Context, taskID string) ([]domain.Comment, error) {
	return r.comments[taskID], nil
}

// ── billing collaborators ─────────────────────────────────────────────────────

type stubProvider struct {
	event               *domain.BillingEvent
	constructErr        error
	subscriptions       map[string]*domain.ProviderSubscription
	getErr              error
	customerErr         error
	customers           int
	checkoutReqs        []ports.CheckoutRequest
	canceled            []string
	lastCallHadDeadline bool
}

func newStubProvider() *stubProvider {
	return &stubProvider{subscriptions: make(map[string]*domain.ProviderSubscription)}
}

func (p *stubProvider) CreateCustomer(ctx context.Context, _, _, _ string) (string, error) {
	_, p.lastCallHadDeadline = ctx.Deadline()
	if p.customerErr != nil {
		return "", p.customerErr
	}
	p.customers++
	return fmt.Sprintf("cus_%d", p.customers), nil
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutSession, error) {
	_, p.lastCallHadDeadline = ctx.Deadline()
	p.checkoutReqs = append(p.checkoutReqs, req)
	return &ports.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (p *stubProvider) GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	_, p.lastCallHadDeadline = ctx.Deadline()
	if p.getErr != nil {
		return nil, p.getErr
	}
	s, ok := p.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such subscription %s", domain.ErrBillingProvider, id)
	}
	out := *s
	return &out, nil
}

func (p *stubProvider) CancelAtPeriodEnd(_ context.Context, id string) (*domain.ProviderSubscription, error) {
	p.canceled = append(p.canceled, id)
	return &domain.ProviderSubscription{ID: id, Status: domain.SubscriptionActive, CancelAtPeriodEnd: true}, nil
}

func (p *stubProvider) ConstructEvent(_ []byte, _ string) (*domain.BillingEvent, error) {
	if p.constructErr != nil {
		return nil, p.constructErr
	}
	return p.event, nil
}

type stubDedup struct {
	seen map[string]bool
	err  error
}

func newStubDedup() *stubDedup { return &stubDedup{seen: make(map[string]bool)} }

func (d *stubDedup) Claim(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

type journalEntry struct {
	eventID string
	outcome domain.BillingEventOutcome
}

type stubEventStore struct {
	mu          sync.Mutex
	journal     []journalEntry
	deadLetters []domain.DeadLetter
	resolved    []string
	failed      []string
}

func (s *stubEventStore) Record(_ context.Context, e *domain.BillingEvent, outcome domain.BillingEventOutcome, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, journalEntry{eventID: e.ID, outcome: outcome})
	return nil
}

func (s *stubEventStore) SaveDeadLetter(_ context.Context, e *domain.BillingEvent, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetters = append(s.deadLetters, domain.DeadLetter{ID: e.ID, Event: *e, LastError: reason})
	return nil
}

func (s *stubEventStore) PendingDeadLetters(_ context.Context, _, _ int) ([]domain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DeadLetter(nil), s.deadLetters...), nil
}

func (s *stubEventStore) ResolveDeadLetter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, id)
	return nil
}

func (s *stubEventStore) FailDeadLetter(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

type stubPublisher struct {
	messages []domain.SubscriptionChanged
}

func (p *stubPublisher) PublishSubscriptionChanged(_ context.Context, msg domain.SubscriptionChanged) error {
	p.messages = append(p.messages, msg)
	return nil
}
