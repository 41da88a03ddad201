package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
)

type (
	roomRow struct {
		ID        string    `db:"id"`
		BookingID string    `db:"booking_id"`
		CreatedAt time.Time `db:"created_at"`
	}

	participantRow struct {
		RoomID string `db:"room_id"`
		UserID string `db:"user_id"`
		Role   string `db:"role"`
	}

	messageRow struct {
		ID        string      `db:"id"`
		RoomID    string      `db:"room_id"`
		SenderID  null.String `db:"sender_id"`
		Body      string      `db:"body"`
		IsSystem  bool        `db:"is_system"`
		CreatedAt time.Time   `db:"created_at"`
	}
)

type chatRepository struct {
	db core.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db core.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) GetRoomByBookingID(ctx context.Context, bookingID string) (chat.Room, error) {
	if !validID(bookingID) {
		return chat.Room{}, chat.ErrNotFound
	}

	var row roomRow
	err := repo.db.GetContext(ctx, &row, "SELECT id, booking_id, created_at FROM chat_rooms WHERE booking_id = $1", bookingID)
	if err != nil {
		return chat.Room{}, trapNoRowsErr(err, chat.ErrNotFound, "getting chat room")
	}

	var participants []participantRow
	err = repo.db.SelectContext(ctx, &participants,
		"SELECT room_id, user_id, role FROM chat_participants WHERE room_id = $1 ORDER BY role DESC", row.ID)
	if err != nil {
		return chat.Room{}, errors.Wrap(err, "querying chat participants")
	}

	room := chat.Room{
		ID:           row.ID,
		BookingID:    row.BookingID,
		Participants: make([]chat.Participant, 0, len(participants)),
		CreatedAt:    row.CreatedAt.UTC(),
	}
	for _, p := range participants {
		room.Participants = append(room.Participants, chat.Participant{RoomID: p.RoomID, UserID: p.UserID, Role: p.Role})
	}
	return room, nil
}

func (repo chatRepository) CreateRoom(ctx context.Context, room chat.Room, seed chat.Message) (chat.Room, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO chat_rooms (id, booking_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (booking_id) DO NOTHING",
			room.ID, room.BookingID, room.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return chat.ErrRoomExists
			}
			return errors.Wrap(err, "inserting chat room")
		}
		created, err := rowsAffected(res, "inserting chat room")
		if err != nil {
			return err
		} else if !created {
			return chat.ErrRoomExists
		}

		for _, p := range room.Participants {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO chat_participants (room_id, user_id, role) VALUES ($1, $2, $3)",
				room.ID, p.UserID, p.Role,
			)
			if err != nil {
				return errors.Wrap(err, "inserting chat participant")
			}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO chat_messages (id, room_id, sender_id, body, is_system, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			seed.ID, room.ID, seed.SenderID, seed.Body, seed.IsSystem, seed.CreatedAt,
		)
		return errors.Wrap(err, "inserting chat message")
	})
	if err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, roomID string) ([]chat.Message, error) {
	if !validID(roomID) {
		return []chat.Message{}, nil
	}
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT id, room_id, sender_id, body, is_system, created_at FROM chat_messages WHERE room_id = $1 ORDER BY created_at",
		roomID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, chat.Message{
			ID:        r.ID,
			RoomID:    r.RoomID,
			SenderID:  r.SenderID,
			Body:      r.Body,
			IsSystem:  r.IsSystem,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}
