package inmemdb

import (
	"context"

	"github.com/trezcool/madrasa/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func copyRoom(r chat.Room) chat.Room {
	r.Participants = append([]chat.Participant{}, r.Participants...)
	return r
}

func (repo *chatRepository) GetRoomByBookingID(_ context.Context, bookingID string) (chat.Room, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rooms[bookingID]; ok {
		return copyRoom(r), nil
	}
	return chat.Room{}, chat.ErrNotFound
}

func (repo *chatRepository) CreateRoom(_ context.Context, room chat.Room, seed chat.Message) (chat.Room, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rooms[room.BookingID]; ok {
		return chat.Room{}, chat.ErrRoomExists
	}
	room = copyRoom(room)
	repo.db.rooms[room.BookingID] = room
	repo.db.messages[room.ID] = []chat.Message{seed}
	repo.db.wrote(TableChatRooms)
	repo.db.wrote(TableChatMessages)
	return copyRoom(room), nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, roomID string) ([]chat.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return append([]chat.Message{}, repo.db.messages[roomID]...), nil
}

// RoomCount returns the number of chat rooms stored.
func (db *DB) RoomCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.rooms)
}
