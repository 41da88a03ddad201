package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core/notification"
)

type (
	NotificationService interface {
		List(ctx context.Context, userID string, filter notification.QueryFilter) ([]notification.Notification, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID, id string) (notification.Notification, error)
		MarkAllRead(ctx context.Context, userID string) (int, error)
	}

	notificationApi struct {
		svc      NotificationService
		validate *validator.Validate
	}

	unreadCountResponse struct {
		UnreadCount int `json:"unread_count"`
	}

	markAllReadResponse struct {
		Updated int `json:"updated"`
	}
)

var _ NotificationService = (*notification.Service)(nil) // interface compliance check

// registerNotificationAPI mounts the in-app notification endpoints of the authenticated user.
func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc NotificationService, validate *validator.Validate) {
	api := notificationApi{svc: svc, validate: validate}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = api.validate.Struct(filter); err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)
	filter.Ordering, _ = ord.Get(notification.OrderCreatedAt)

	notifs, err := api.svc.List(ctx.Request().Context(), claims.Subject, filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	count, err := api.svc.UnreadCount(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, unreadCountResponse{UnreadCount: count})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	count, err := api.svc.MarkAllRead(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, markAllReadResponse{Updated: count})
}
