package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies a domain event. The set of kinds is closed.
type Kind string

const (
	KindBookingConfirmed            Kind = "booking.confirmed"
	KindBadgeGranted                Kind = "badge.granted"
	KindProjectEvaluated            Kind = "project.evaluated"
	KindChallengeSubmissionReviewed Kind = "challenge_submission.reviewed"
	KindArticleApproved             Kind = "article.approved"
	KindCertificateIssued           Kind = "certificate.issued"
	KindPointsAwarded               Kind = "points.awarded"
)

var (
	ErrUnknownKind = errors.New("unknown event kind")

	Kinds = []Kind{
		KindBookingConfirmed,
		KindBadgeGranted,
		KindProjectEvaluated,
		KindChallengeSubmissionReviewed,
		KindArticleApproved,
		KindCertificateIssued,
		KindPointsAwarded,
	}
)

type Event interface {
	Kind() Kind
	// Recipients are the users the event is about.
	Recipients() []string
}

type (
	BookingConfirmed struct {
		BookingID     string    `json:"booking_id"`
		TeacherUserID string    `json:"teacher_user_id"`
		StudentID     string    `json:"student_id"`
		ConfirmedAt   time.Time `json:"confirmed_at"`
	}

	BadgeGranted struct {
		UserID    string `json:"user_id"`
		BadgeID   string `json:"badge_id"`
		BadgeName string `json:"badge_name"`
	}

	ProjectEvaluated struct {
		UserID       string `json:"user_id"`
		ProjectID    string `json:"project_id"`
		ProjectTitle string `json:"project_title"`
		Score        int    `json:"score"`
		Passed       bool   `json:"passed"`
	}

	ChallengeSubmissionReviewed struct {
		UserID         string `json:"user_id"`
		ChallengeID    string `json:"challenge_id"`
		ChallengeTitle string `json:"challenge_title"`
		SubmissionID   string `json:"submission_id"`
		Accepted       bool   `json:"accepted"`
	}

	ArticleApproved struct {
		UserID       string `json:"user_id"`
		ArticleID    string `json:"article_id"`
		ArticleTitle string `json:"article_title"`
	}

	CertificateIssued struct {
		UserID        string    `json:"user_id"`
		CertificateID string    `json:"certificate_id"`
		Serial        string    `json:"serial"`
		IssuedAt      time.Time `json:"issued_at"`
	}

	PointsAwarded struct {
		UserID string `json:"user_id"`
		Points int    `json:"points"`
		Total  int    `json:"total"`
		Reason string `json:"reason"`
	}
)

func (BookingConfirmed) Kind() Kind            { return KindBookingConfirmed }
func (BadgeGranted) Kind() Kind                { return KindBadgeGranted }
func (ProjectEvaluated) Kind() Kind            { return KindProjectEvaluated }
func (ChallengeSubmissionReviewed) Kind() Kind { return KindChallengeSubmissionReviewed }
func (ArticleApproved) Kind() Kind             { return KindArticleApproved }
func (CertificateIssued) Kind() Kind           { return KindCertificateIssued }
func (PointsAwarded) Kind() Kind               { return KindPointsAwarded }

func (e BookingConfirmed) Recipients() []string {
	rcpts := make([]string, 0, 2)
	for _, id := range []string{e.StudentID, e.TeacherUserID} {
		if id != "" {
			rcpts = append(rcpts, id)
		}
	}
	return rcpts
}
func (e BadgeGranted) Recipients() []string                { return []string{e.UserID} }
func (e ProjectEvaluated) Recipients() []string            { return []string{e.UserID} }
func (e ChallengeSubmissionReviewed) Recipients() []string { return []string{e.UserID} }
func (e ArticleApproved) Recipients() []string             { return []string{e.UserID} }
func (e CertificateIssued) Recipients() []string           { return []string{e.UserID} }
func (e PointsAwarded) Recipients() []string               { return []string{e.UserID} }

// Envelope is the wire form of an event inside queued jobs.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", ev.Kind())
	}
	return json.Marshal(Envelope{Kind: ev.Kind(), Data: data})
}

func Decode(b []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "decoding envelope")
	}

	var ev Event
	var err error
	switch env.Kind {
	case KindBookingConfirmed:
		ev, err = unmarshal(env.Data, BookingConfirmed{})
	case KindBadgeGranted:
		ev, err = unmarshal(env.Data, BadgeGranted{})
	case KindProjectEvaluated:
		ev, err = unmarshal(env.Data, ProjectEvaluated{})
	case KindChallengeSubmissionReviewed:
		ev, err = unmarshal(env.Data, ChallengeSubmissionReviewed{})
	case KindArticleApproved:
		ev, err = unmarshal(env.Data, ArticleApproved{})
	case KindCertificateIssued:
		ev, err = unmarshal(env.Data, CertificateIssued{})
	case KindPointsAwarded:
		ev, err = unmarshal(env.Data, PointsAwarded{})
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", env.Kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", env.Kind)
	}
	return ev, nil
}

func unmarshal[T Event](data []byte, ev T) (Event, error) {
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}
