package domain

import "errors"

var ErrValidation = errors.New("validation failed")

// Authentication.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserGone           = errors.New("token user no longer exists")
	ErrPasswordChanged    = errors.New("password changed after token was issued")
	ErrEmailInUse         = errors.New("email already in use")
)

// Authorization.
var (
	ErrForbidden            = errors.New("access forbidden")
	ErrOwnerOnly            = errors.New("only the project owner may do this")
	ErrSubscriptionRequired = errors.New("active subscription required")
)

// Lookups.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Membership and tasks.
var (
	ErrAlreadyMember    = errors.New("user is already a project member")
	ErrOwnerImmutable   = errors.New("project owner membership cannot be changed")
	ErrInvalidRole      = errors.New("invalid project role")
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidPriority  = errors.New("invalid task priority")
	ErrPasswordInUpdate = errors.New("password cannot be changed here")
)

// Billing.
var (
	ErrInvalidPlan            = errors.New("invalid plan")
	ErrNoActiveSubscription   = errors.New("no active subscription")
	ErrNoProviderSubscription = errors.New("no provider subscription")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrMalformedEvent         = errors.New("malformed billing event")
	ErrBillingProvider        = errors.New("billing provider error")
)
