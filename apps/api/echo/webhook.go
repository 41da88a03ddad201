package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/services/gateway"
)

const (
	webhookProcessed = "processed"
	webhookIgnored   = "ignored"
)

type (
	// EventVerifier fetches a gateway event back from the gateway, so that a forged body changes nothing.
	EventVerifier interface {
		VerifyEvent(ctx context.Context, eventID string) (gateway.ChargeResult, error)
	}

	webhookApi struct {
		payments PaymentService
		verifier EventVerifier
		logger   core.Logger
	}

	// omiseEvent is the part of the webhook body we trust: the event id.
	omiseEvent struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}

	webhookResponse struct {
		Status  string           `json:"status"`
		Payment *payment.Payment `json:"payment,omitempty"`
	}
)

var _ EventVerifier = (*gateway.OmiseVerifier)(nil) // interface compliance check

func registerWebhookAPI(g *echo.Group, payments PaymentService, verifier EventVerifier, logger core.Logger) {
	api := webhookApi{payments: payments, verifier: verifier, logger: logger}

	wg := g.Group("/webhooks")
	wg.POST("/omise", api.omise)
}

// Handlers

func (api *webhookApi) omise(ctx echo.Context) error {
	var data omiseEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to omiseEvent")
	}
	if data.ID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "this field is required"})
	}

	rctx := ctx.Request().Context()
	res, err := api.verifier.VerifyEvent(rctx, data.ID)
	if err != nil {
		if errors.Cause(err) == gateway.ErrIgnoredEvent {
			return api.ignore(ctx, data.ID, err)
		}
		return err
	}

	p, err := api.apply(rctx, res)
	switch errors.Cause(err) {
	case nil:
		return ctx.JSON(http.StatusOK, webhookResponse{Status: webhookProcessed, Payment: &p})
	case payment.ErrNotFound, booking.ErrNotFound, payment.ErrInvalidTransition:
		// unknown charges or bookings and late failures of completed payments are acknowledged, not retried
		return api.ignore(ctx, data.ID, err)
	default:
		return err
	}
}

// apply moves the payment referenced by the charge, recording it first when the gateway is the first to tell us about it.
func (api *webhookApi) apply(ctx context.Context, res gateway.ChargeResult) (payment.Payment, error) {
	p, err := api.payments.UpdateStatusByProviderRef(ctx, gateway.ProviderOmise, res.ChargeID, res.Status)
	if errors.Cause(err) != payment.ErrNotFound || res.BookingID == "" {
		return p, err
	}

	p, err = api.payments.Create(ctx, payment.NewPayment{
		BookingID:   res.BookingID,
		Amount:      res.Amount,
		Currency:    strings.ToUpper(res.Currency),
		Status:      res.Status,
		Provider:    gateway.ProviderOmise,
		ProviderRef: res.ChargeID,
	})
	if errors.Cause(err) == payment.ErrDuplicateRef { // a concurrent delivery recorded it
		return api.payments.UpdateStatusByProviderRef(ctx, gateway.ProviderOmise, res.ChargeID, res.Status)
	}
	return p, err
}

func (api *webhookApi) ignore(ctx echo.Context, eventID string, reason error) error {
	api.logger.Info(fmt.Sprintf("omise event %s ignored: %v", eventID, reason))
	return ctx.JSON(http.StatusOK, webhookResponse{Status: webhookIgnored})
}
