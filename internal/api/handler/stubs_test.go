package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	testProjectID = "0b7f5c3e-6a4d-4e8b-9f21-3c5d7e9a1b20"
	testTaskID    = "5e2a9d14-7c3b-4f6e-8a10-2b4c6d8e0f13"
	testMemberID  = "9c1e4b7a-2d5f-4a8c-b3e6-7f9a1c3e5b24"
)

var testUser = &domain.User{ID: "2f6b8d0a-4c1e-4b3d-9f5a-7e9c1b3d5f68", Email: "ada@example.com", Role: domain.RoleUser, Active: true}

type request struct {
	method string
	body   io.Reader
	user   *domain.User
	params map[string]string
	header map[string]string
}

// newContext builds an echo context the way the router would hand it to a
// handler: validator registered, user injected, path params set.
func newContext(r request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(r.method, "/", r.body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if r.user != nil {
		c.Set(ContextUserKey, r.user)
	}
	for name, value := range r.params {
		c.SetParamNames(append(c.ParamNames(), name)...)
		c.SetParamValues(append(c.ParamValues(), value)...)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return resp
}

func dataOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", resp)
	}
	return data
}

type stubAuthService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error)
	loginFn          func(ctx context.Context, email, password string) (string, *domain.User, error)
	authenticateFn   func(ctx context.Context, token string) (*domain.User, error)
	updatePasswordFn func(ctx context.Context, userID, current, next string) (string, *domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return s.authenticateFn(ctx, token)
}

func (s *stubAuthService) UpdatePassword(ctx context.Context, userID, current, next string) (string, *domain.User, error) {
	return s.updatePasswordFn(ctx, userID, current, next)
}

type stubUserService struct {
	meFn       func(ctx context.Context, userID string) (*domain.User, *domain.Subscription, error)
	updateMeFn func(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error)
	deleteMeFn func(ctx context.Context, userID string) error
	listFn     func(ctx context.Context) ([]domain.User, error)
	getFn      func(ctx context.Context, id string) (*domain.User, error)
	updateFn   func(ctx context.Context, id string, in ports.AdminUpdateUserInput) (*domain.User, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (s *stubUserService) Me(ctx context.Context, userID string) (*domain.User, *domain.Subscription, error) {
	return s.meFn(ctx, userID)
}

func (s *stubUserService) UpdateMe(ctx context.Context, userID string, in ports.UpdateProfileInput) (*domain.User, error) {
	return s.updateMeFn(ctx, userID, in)
}

func (s *stubUserService) DeleteMe(ctx context.Context, userID string) error {
	return s.deleteMeFn(ctx, userID)
}

func (s *stubUserService) List(ctx context.Context) ([]domain.User, error) { return s.listFn(ctx) }

func (s *stubUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubUserService) Update(ctx context.Context, id string, in ports.AdminUpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubUserService) Delete(ctx context.Context, id string) error { return s.deleteFn(ctx, id) }

type stubProjectService struct {
	listFn         func(ctx context.Context, userID string) ([]domain.Project, error)
	createFn       func(ctx context.Context, userID string, in ports.CreateProjectInput) (*domain.Project, error)
	getFn          func(ctx context.Context, userID, projectID string) (*ports.ProjectDetail, error)
	updateFn       func(ctx context.Context, userID, projectID string, in ports.UpdateProjectInput) (*domain.Project, error)
	deleteFn       func(ctx context.Context, userID, projectID string) error
	listMembersFn  func(ctx context.Context, userID, projectID string) ([]domain.ProjectMember, error)
	addMemberFn    func(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error)
	updateMemberFn func(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error)
	removeMemberFn func(ctx context.Context, userID, projectID, memberID string) error
}

func (s *stubProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.listFn(ctx, userID)
}

func (s *stubProjectService) Create(ctx context.Context, userID string, in ports.CreateProjectInput) (*domain.Project, error) {
	return s.createFn(ctx, userID, in)
}

func (s *stubProjectService) Get(ctx context.Context, userID, projectID string) (*ports.ProjectDetail, error) {
	return s.getFn(ctx, userID, projectID)
}

func (s *stubProjectService) Update(ctx context.Context, userID, projectID string, in ports.UpdateProjectInput) (*domain.Project, error) {
	return s.updateFn(ctx, userID, projectID, in)
}

func (s *stubProjectService) Delete(ctx context.Context, userID, projectID string) error {
	return s.deleteFn(ctx, userID, projectID)
}

func (s *stubProjectService) ListMembers(ctx context.Context, userID, projectID string) ([]domain.ProjectMember, error) {
	return s.listMembersFn(ctx, userID, projectID)
}

func (s *stubProjectService) AddMember(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	return s.addMemberFn(ctx, userID, projectID, memberID, role)
}

func (s *stubProjectService) UpdateMemberRole(ctx context.Context, userID, projectID, memberID string, role domain.ProjectRole) (*domain.ProjectMember, error) {
	return s.updateMemberFn(ctx, userID, projectID, memberID, role)
}

func (s *stubProjectService) RemoveMember(ctx context.Context, userID, projectID, memberID string) error {
	return s.removeMemberFn(ctx, userID, projectID, memberID)
}

type stubTaskService struct {
	listFn       func(ctx context.Context, userID, projectID string) (*ports.TaskList, error)
	createFn     func(ctx context.Context, userID, projectID string, in ports.CreateTaskInput) (*domain.Task, error)
	getFn        func(ctx context.Context, userID, projectID, taskID string) (*ports.TaskDetail, error)
	updateFn     func(ctx context.Context, userID, projectID, taskID string, in ports.UpdateTaskInput) (*domain.Task, error)
	deleteFn     func(ctx context.Context, userID, projectID, taskID string) error
	addCommentFn func(ctx context.Context, userID, projectID, taskID, content string) (*domain.Comment, error)
}

func (s *stubTaskService) List(ctx context.Context, userID, projectID string) (*ports.TaskList, error) {
	return s.listFn(ctx, userID, projectID)
}

func (s *stubTaskService) Create(ctx context.Context, userID, projectID string, in ports.CreateTaskInput) (*domain.Task, error) {
	return s.createFn(ctx, userID, projectID, in)
}

func (s *stubTaskService) Get(ctx context.Context, userID, projectID, taskID string) (*ports.TaskDetail, error) {
	return s.getFn(ctx, userID, projectID, taskID)
}

func (s *stubTaskService) Update(ctx context.Context, userID, projectID, taskID string, in ports.UpdateTaskInput) (*domain.Task, error) {
	return s.updateFn(ctx, userID, projectID, taskID, in)
}

func (s *stubTaskService) Delete(ctx context.Context, userID, projectID, taskID string) error {
	return s.deleteFn(ctx, userID, projectID, taskID)
}

func (s *stubTaskService) AddComment(ctx context.Context, userID, projectID, taskID, content string) (*domain.Comment, error) {
	return s.addCommentFn(ctx, userID, projectID, taskID, content)
}

type stubBillingService struct {
	plans          []domain.PlanInfo
	mySubFn        func(ctx context.Context, userID string) (*domain.Subscription, error)
	checkoutFn     func(ctx context.Context, userID string, plan domain.Plan) (*ports.CheckoutSession, error)
	cancelFn       func(ctx context.Context, userID string) (*domain.Subscription, error)
	handleWebhook  func(ctx context.Context, payload []byte, signature string) error
	webhookInvoked bool
}

func (s *stubBillingService) Plans() []domain.PlanInfo { return s.plans }

func (s *stubBillingService) MySubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.mySubFn(ctx, userID)
}

func (s *stubBillingService) CreateCheckoutSession(ctx context.Context, userID string, plan domain.Plan) (*ports.CheckoutSession, error) {
	return s.checkoutFn(ctx, userID, plan)
}

func (s *stubBillingService) Cancel(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.cancelFn(ctx, userID)
}

func (s *stubBillingService) StartFree(context.Context, *domain.User) (*domain.Subscription, error) {
	return nil, nil
}

func (s *stubBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	s.webhookInvoked = true
	return s.handleWebhook(ctx, payload, signature)
}

func (s *stubBillingService) Reconcile(context.Context, *domain.BillingEvent) error { return nil }
