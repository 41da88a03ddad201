package fanout

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/certificate"
	"github.com/trezcool/madrasa/core/events"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/user"
)

// Mail subjects
const (
	SubjectBookingConfirmed        = "تم تأكيد حجزك"
	SubjectBookingConfirmedTeacher = "تم تأكيد حجز جديد"
	SubjectBadgeGranted            = "حصلت على شارة جديدة"
	SubjectProjectEvaluated        = "تم تقييم مشروعك"
	SubjectChallengeReviewed       = "تمت مراجعة مشاركتك في التحدي"
	SubjectArticleApproved         = "تمت الموافقة على مقالك"
	SubjectCertificateIssued       = "تم إصدار شهادة العضوية الخاصة بك"
)

type (
	UserGetter interface {
		GetMany(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Notifier interface {
		Notify(ctx context.Context, userID, typ string, data interface{}) (notification.Notification, error)
	}

	EligibilityChecker interface {
		CheckEligibility(ctx context.Context, userID string) (certificate.Certificate, bool, error)
	}

	Deps struct {
		Users         UserGetter
		Notifications Notifier
		Certificates  EligibilityChecker
		Mail          core.EmailService
	}

	// MailData is what email templates receive under .Data.
	MailData struct {
		Name  string
		Event events.Event
	}

	mailRoute struct {
		template string
		subject  string
		to       func(ev events.Event) string // defaults to the event's first recipient
	}
)

// NewTable builds the event -> listeners mapping.
func NewTable(deps Deps) events.Table {
	certCheck := certificateListener(deps)

	return events.Table{
		events.KindBookingConfirmed: {
			notifyListener("notify.booking_confirmed", notification.TypeBookingConfirmed, deps),
			mailListener("mail.booking_confirmed.student", mailRoute{
				template: "booking_confirmed",
				subject:  SubjectBookingConfirmed,
				to:       func(ev events.Event) string { return ev.(events.BookingConfirmed).StudentID },
			}, deps),
			mailListener("mail.booking_confirmed.teacher", mailRoute{
				template: "booking_confirmed_teacher",
				subject:  SubjectBookingConfirmedTeacher,
				to:       func(ev events.Event) string { return ev.(events.BookingConfirmed).TeacherUserID },
			}, deps),
		},
		events.KindBadgeGranted: {
			notifyListener("notify.badge_granted", notification.TypeBadgeGranted, deps),
			mailListener("mail.badge_granted", mailRoute{template: "badge_granted", subject: SubjectBadgeGranted}, deps),
			certCheck,
		},
		events.KindProjectEvaluated: {
			notifyListener("notify.project_evaluated", notification.TypeProjectEvaluated, deps),
			mailListener("mail.project_evaluated", mailRoute{template: "project_evaluated", subject: SubjectProjectEvaluated}, deps),
			certCheck,
		},
		events.KindChallengeSubmissionReviewed: {
			notifyListener("notify.challenge_reviewed", notification.TypeChallengeReviewed, deps),
			mailListener("mail.challenge_reviewed", mailRoute{template: "challenge_reviewed", subject: SubjectChallengeReviewed}, deps),
			certCheck,
		},
		events.KindArticleApproved: {
			notifyListener("notify.article_approved", notification.TypeArticleApproved, deps),
			mailListener("mail.article_approved", mailRoute{template: "article_approved", subject: SubjectArticleApproved}, deps),
			certCheck,
		},
		events.KindPointsAwarded: {
			notifyListener("notify.points_awarded", notification.TypePointsAwarded, deps),
			certCheck,
		},
		events.KindCertificateIssued: {
			notifyListener("notify.certificate_issued", notification.TypeCertificateIssued, deps),
			mailListener("mail.certificate_issued", mailRoute{template: "certificate_issued", subject: SubjectCertificateIssued}, deps),
		},
	}
}

// notifyListener writes one in-app notification per recipient, inline.
// A failed write does not stop the remaining recipients.
func notifyListener(name, typ string, deps Deps) events.Listener {
	return events.Listener{
		Name: name,
		Handle: func(ctx context.Context, ev events.Event) error {
			rcpts := ev.Recipients()
			var errs []error
			for _, uid := range rcpts {
				if _, err := deps.Notifications.Notify(ctx, uid, typ, ev); err != nil {
					errs = append(errs, errors.Wrapf(err, "notifying %s", uid))
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("notified %d of %d recipients: %w", len(rcpts)-len(errs), len(rcpts), stderrors.Join(errs...))
			}
			return nil
		},
	}
}

// mailListener mails a single recipient, queued with the notification job preset.
func mailListener(name string, route mailRoute, deps Deps) events.Listener {
	return events.Listener{
		Name:     name,
		Queued:   true,
		Attempts: core.NotificationJobAttempts,
		Timeout:  core.NotificationJobTimeout,
		Handle: func(ctx context.Context, ev events.Event) error {
			var uid string
			if route.to != nil {
				uid = route.to(ev)
			} else if rcpts := ev.Recipients(); len(rcpts) > 0 {
				uid = rcpts[0]
			}
			if uid == "" {
				return nil
			}

			usrs, err := deps.Users.GetMany(ctx, uid)
			if err != nil {
				return errors.Wrap(err, "getting recipient")
			}
			if len(usrs) == 0 || !usrs[0].IsActive || usrs[0].Email == "" {
				return nil
			}
			usr := usrs[0]

			msg := &core.EmailMessage{
				To:           []mail.Address{usr.Address()},
				Subject:      route.subject,
				TemplateName: route.template,
				TemplateData: MailData{Name: usr.Name, Event: ev},
			}
			return errors.Wrap(deps.Mail.SendMessage(ctx, msg), "sending "+route.template)
		},
	}
}

// certificateListener re-evaluates certificate eligibility of every recipient.
func certificateListener(deps Deps) events.Listener {
	return events.Listener{
		Name:     "certificate.check",
		Queued:   true,
		Attempts: core.HeavyJobAttempts,
		Timeout:  core.HeavyJobTimeout,
		Handle: func(ctx context.Context, ev events.Event) error {
			for _, uid := range ev.Recipients() {
				if _, _, err := deps.Certificates.CheckEligibility(ctx, uid); err != nil {
					return errors.Wrapf(err, "checking eligibility of %s", uid)
				}
			}
			return nil
		},
	}
}
