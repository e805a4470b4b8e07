package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

type SubscriptionHandler struct {
	billing ports.BillingService
}

func NewSubscriptionHandler(billing ports.BillingService) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing}
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

type plansData struct {
	Plans []domain.PlanInfo `json:"plans"`
}

type subscriptionData struct {
	Subscription *domain.Subscription `json:"subscription"`
}

type webhookAck struct {
	Received bool `json:"received"`
}

// Plans lists the purchasable plans.
//
// @Summary      List plans
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Router       /subscriptions/plans [get]
func (h *SubscriptionHandler) Plans(c echo.Context) error {
	return success(c, http.StatusOK, plansData{Plans: h.billing.Plans()})
}

// MySubscription returns the caller's active subscription.
//
// @Summary      My subscription
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /subscriptions/my-subscription [get]
func (h *SubscriptionHandler) MySubscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sub, err := h.billing.MySubscription(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, subscriptionData{Subscription: sub})
}

// CreateCheckoutSession opens a hosted checkout for a paid plan.
//
// @Summary      Create checkout session
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      checkoutRequest  true  "Plan"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      502   {object}  ErrorResponse
// @Router       /subscriptions/create-checkout-session [post]
func (h *SubscriptionHandler) CreateCheckoutSession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := h.billing.CreateCheckoutSession(c.Request().Context(), user.ID, domain.Plan(req.Plan))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, session)
}

// Cancel schedules the caller's subscription to end with the current period.
//
// @Summary      Cancel subscription
// @Tags         subscriptions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if _, err := h.billing.Cancel(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return successMessage(c, "Subscription will be canceled at the end of the billing period")
}

// Webhook receives provider events. Once the signature verifies the event is
// acknowledged; reconciliation failures are retried in the background.
//
// @Summary      Billing webhook
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header    string  true  "Webhook signature"
// @Success      200               {object}  webhookAck
// @Failure      400               {object}  ErrorResponse
// @Router       /subscriptions/webhook [post]
func (h *SubscriptionHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidSignature, err)
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", domain.ErrInvalidSignature, SignatureHeader)
	}

	if err := h.billing.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookAck{Received: true})
}
