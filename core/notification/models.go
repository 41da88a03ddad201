package notification

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
)

// Notification types
const (
	TypeBookingConfirmed  = "booking_confirmed"
	TypeBadgeGranted      = "badge_granted"
	TypeProjectEvaluated  = "project_evaluated"
	TypeChallengeReviewed = "challenge_reviewed"
	TypeArticleApproved   = "article_approved"
	TypeCertificateIssued = "certificate_issued"
	TypePointsAwarded     = "points_awarded"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Data      null.JSON `json:"data"`
	ReadAt    null.Time `json:"read_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Notification) IsRead() bool {
	return n.ReadAt.Valid
}

// OrderCreatedAt is the only field notifications can be ordered by.
const OrderCreatedAt = "created_at"

type QueryFilter struct {
	UnreadOnly bool            `query:"unread"`
	Limit      int             `query:"limit" validate:"omitempty,min=1,max=100"`
	Ordering   core.DBOrdering `query:"-"` // newest first unless created_at ascending is asked for
}

// Order returns the effective ordering of the query.
func (f QueryFilter) Order() core.DBOrdering {
	return core.DBOrdering{Field: OrderCreatedAt, Ascending: f.Ordering.Field == OrderCreatedAt && f.Ordering.Ascending}
}
