package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core/chat"
)

type (
	ChatService interface {
		GetForBooking(ctx context.Context, bookingID string) (chat.Room, error)
		Messages(ctx context.Context, roomID string) ([]chat.Message, error)
	}

	chatApi struct {
		svc ChatService
	}

	roomResponse struct {
		Room     chat.Room      `json:"room"`
		Messages []chat.Message `json:"messages"`
	}
)

var _ ChatService = (*chat.Service)(nil) // interface compliance check

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc ChatService) {
	api := chatApi{svc: svc}

	bg := g.Group("/bookings/:id", jwt)
	bg.GET("/chat", api.retrieve)
}

// Handlers

// retrieve returns the room of a booking and its messages. Outsiders get a 404, as if the room did not exist.
func (api *chatApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	room, err := api.svc.GetForBooking(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if !(claims.IsAdmin || room.HasParticipant(claims.Subject)) {
		return errHttpNotFound
	}

	msgs, err := api.svc.Messages(rctx, room.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, roomResponse{Room: room, Messages: msgs})
}
