package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core/payment"
)

type (
	PaymentService interface {
		Create(ctx context.Context, np payment.NewPayment) (payment.Payment, error)
		GetByID(ctx context.Context, id string) (payment.Payment, error)
		UpdateStatus(ctx context.Context, id string, status payment.Status) (payment.Payment, error)
		UpdateStatusByProviderRef(ctx context.Context, provider, ref string, status payment.Status) (payment.Payment, error)
	}

	paymentApi struct {
		svc      PaymentService
		validate *validator.Validate
	}
)

var _ PaymentService = (*payment.Service)(nil) // interface compliance check

// registerPaymentAPI mounts the back-office payment endpoints; they are admin only.
func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc PaymentService, validate *validator.Validate) {
	api := paymentApi{svc: svc, validate: validate}

	pg := g.Group("/payments", jwt, adminMiddleware())
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PATCH("/:id/status", api.updateStatus)
}

// Handlers

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) updateStatus(ctx echo.Context) error {
	var data payment.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	p, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
