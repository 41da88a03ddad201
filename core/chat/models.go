package chat

import (
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"

	WelcomeMessage = "مرحباً بكم! تم تأكيد الحجز، ويمكنكم التواصل هنا لترتيب تفاصيل الجلسة."
)

// Room is the conversation thread of a finalized booking.
type Room struct {
	ID           string        `json:"id"`
	BookingID    string        `json:"booking_id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (r Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type Participant struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  null.String `json:"sender_id"` // null for system messages
	Body      string      `json:"body"`
	IsSystem  bool        `json:"is_system"`
	CreatedAt time.Time   `json:"created_at"`
}
