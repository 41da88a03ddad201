package certificate

import "time"

// Certificate is the membership certificate a user earns once.
type Certificate struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Serial   string    `json:"serial"`
	Points   int       `json:"points"` // points total at issuance
	IssuedAt time.Time `json:"issued_at"`
}

// Stats are the totals eligibility is computed from.
type Stats struct {
	Points             int `json:"points"`
	Badges             int `json:"badges"`
	ApprovedArticles   int `json:"approved_articles"`
	PassedProjects     int `json:"passed_projects"`
	AcceptedChallenges int `json:"accepted_challenges"`
}

func (s Stats) ApprovedWorks() int {
	return s.ApprovedArticles + s.PassedProjects + s.AcceptedChallenges
}

type Policy struct {
	MinPoints        int
	MinApprovedWorks int
	MinBadges        int
}

func (p Policy) Eligible(s Stats) bool {
	return s.Points >= p.MinPoints && s.ApprovedWorks() >= p.MinApprovedWorks && s.Badges >= p.MinBadges
}
