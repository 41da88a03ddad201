package certificate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/events"
)

var (
	ErrNotFound          = errors.New("certificate not found")
	ErrCertificateExists = errors.New("user already holds a certificate")
)

type (
	Repository interface {
		GetCertificateByUserID(ctx context.Context, userID string) (Certificate, error)
		// CreateCertificate returns ErrCertificateExists when the user already holds one.
		CreateCertificate(ctx context.Context, c Certificate) (Certificate, error)
	}

	StatsProvider interface {
		GetUserStats(ctx context.Context, userID string) (Stats, error)
	}

	Service struct {
		repo      Repository
		stats     StatsProvider
		policy    Policy
		publisher events.Publisher
		logger    core.Logger
	}
)

func NewService(repo Repository, stats StatsProvider, policy Policy, publisher events.Publisher, logger core.Logger) *Service {
	return &Service{repo: repo, stats: stats, policy: policy, publisher: publisher, logger: logger}
}

// CheckEligibility issues the user's certificate once the policy is satisfied and publishes CertificateIssued.
// It returns the certificate (zero when not eligible) and whether this call issued it.
// Running it for an already certified user changes nothing.
func (svc *Service) CheckEligibility(ctx context.Context, userID string) (Certificate, bool, error) {
	cert, err := svc.repo.GetCertificateByUserID(ctx, userID)
	if err == nil {
		return cert, false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return Certificate{}, false, errors.Wrap(err, "getting certificate")
	}

	stats, err := svc.stats.GetUserStats(ctx, userID)
	if err != nil {
		return Certificate{}, false, errors.Wrap(err, "getting user stats")
	}
	if !svc.policy.Eligible(stats) {
		return Certificate{}, false, nil
	}

	now := time.Now().UTC()
	cert, err = svc.repo.CreateCertificate(ctx, Certificate{
		ID:       uuid.NewString(),
		UserID:   userID,
		Serial:   newSerial(now),
		Points:   stats.Points,
		IssuedAt: now,
	})
	if err != nil {
		if errors.Cause(err) == ErrCertificateExists {
			cert, err = svc.repo.GetCertificateByUserID(ctx, userID)
			return cert, false, errors.Wrap(err, "getting existing certificate")
		}
		return Certificate{}, false, errors.Wrap(err, "creating certificate")
	}

	ev := events.CertificateIssued{UserID: userID, CertificateID: cert.ID, Serial: cert.Serial, IssuedAt: cert.IssuedAt}
	if err = svc.publisher.Dispatch(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing certificate %s: %v", cert.ID, err), err)
	}
	return cert, true, nil
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Certificate, error) {
	return svc.repo.GetCertificateByUserID(ctx, userID)
}

// newSerial looks like MC-2026-1A2B3C4D.
func newSerial(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("MC-%d-%s", at.Year(), strings.ToUpper(id[:8]))
}
