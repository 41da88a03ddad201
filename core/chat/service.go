package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
)

var (
	ErrNotFound   = errors.New("chat room not found")
	ErrRoomExists = errors.New("a chat room already exists for this booking")
)

type (
	Repository interface {
		GetRoomByBookingID(ctx context.Context, bookingID string) (Room, error)
		// CreateRoom stores the room, its participants and the seed message atomically.
		// It returns ErrRoomExists when the booking already has a room.
		CreateRoom(ctx context.Context, room Room, seed Message) (Room, error)
		QueryMessages(ctx context.Context, roomID string) ([]Message, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// EnsureForBooking returns the booking's chat room, creating it with a system welcome message if absent.
// A booking without a teacher user or a student gets no room; a zero Room is returned.
func (svc *Service) EnsureForBooking(ctx context.Context, b booking.Booking) (Room, error) {
	if b.ID == "" {
		return Room{}, nil
	}
	if b.TeacherUserID == "" || b.StudentID == "" {
		svc.logger.Warn("ensuring chat room: booking "+b.ID+" is missing a participant", map[string]interface{}{
			"teacher_user_id": b.TeacherUserID,
			"student_id":      b.StudentID,
		})
		return Room{}, nil
	}

	room, err := svc.repo.GetRoomByBookingID(ctx, b.ID)
	if err == nil {
		return room, nil
	} else if errors.Cause(err) != ErrNotFound {
		return Room{}, errors.Wrap(err, "getting chat room")
	}

	now := time.Now().UTC()
	roomID := uuid.NewString()
	room = Room{
		ID:        roomID,
		BookingID: b.ID,
		Participants: []Participant{
			{RoomID: roomID, UserID: b.TeacherUserID, Role: RoleTeacher},
			{RoomID: roomID, UserID: b.StudentID, Role: RoleStudent},
		},
		CreatedAt: now,
	}
	seed := Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Body:      WelcomeMessage,
		IsSystem:  true,
		CreatedAt: now,
	}

	room, err = svc.repo.CreateRoom(ctx, room, seed)
	if err != nil {
		if errors.Cause(err) != ErrRoomExists {
			return Room{}, errors.Wrap(err, "creating chat room")
		}
		// lost the race: the other writer's room wins
		room, err = svc.repo.GetRoomByBookingID(ctx, b.ID)
		if err != nil {
			return Room{}, errors.Wrap(err, "getting existing chat room")
		}
	}
	return room, nil
}

func (svc *Service) GetForBooking(ctx context.Context, bookingID string) (Room, error) {
	return svc.repo.GetRoomByBookingID(ctx, bookingID)
}

func (svc *Service) Messages(ctx context.Context, roomID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, roomID)
}
