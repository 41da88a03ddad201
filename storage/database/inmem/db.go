package inmemdb

import (
	"sync"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/certificate"
	"github.com/trezcool/madrasa/core/chat"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/core/points"
	"github.com/trezcool/madrasa/core/user"
)

// Table names, as counted by Writes.
const (
	TableUsers         = "users"
	TableTeachers      = "teachers"
	TableBookings      = "bookings"
	TablePayments      = "payments"
	TableChatRooms     = "chat_rooms"
	TableChatMessages  = "chat_messages"
	TableNotifications = "notifications"
	TableCertificates  = "certificates"
	TablePointsLedger  = "points_ledger"
	TableFailedJobs    = "failed_jobs"
)

// DB is a process-local store honouring the same uniqueness rules as the SQL schema.
// One lock guards every table so multi-table writes are atomic.
type DB struct {
	mu sync.RWMutex

	users         map[string]user.User
	teachers      map[string]user.Teacher
	bookings      map[string]booking.Booking
	payments      map[string]payment.Payment
	rooms         map[string]chat.Room // by booking id
	messages      map[string][]chat.Message
	notifications []notification.Notification
	certificates  map[string]certificate.Certificate // by user id
	ledger        []points.Entry
	achievements  map[string]certificate.Stats // everything but points
	failedJobs    []core.FailedJob

	writes map[string]int
}

func Open() *DB {
	return &DB{
		users:        make(map[string]user.User),
		teachers:     make(map[string]user.Teacher),
		bookings:     make(map[string]booking.Booking),
		payments:     make(map[string]payment.Payment),
		rooms:        make(map[string]chat.Room),
		messages:     make(map[string][]chat.Message),
		certificates: make(map[string]certificate.Certificate),
		achievements: make(map[string]certificate.Stats),
		writes:       make(map[string]int),
	}
}

// Writes returns the number of rows inserted or updated in table so far.
func (db *DB) Writes(table string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writes[table]
}

// caller holds the write lock
func (db *DB) wrote(table string) {
	db.writes[table]++
}

// GrantBadge records a badge for the user.
func (db *DB) GrantBadge(userID string) {
	db.achieve(userID, func(s *certificate.Stats) { s.Badges++ })
}

// ApproveArticle records an approved article for the user.
func (db *DB) ApproveArticle(userID string) {
	db.achieve(userID, func(s *certificate.Stats) { s.ApprovedArticles++ })
}

// PassProject records a passing project evaluation for the user.
func (db *DB) PassProject(userID string) {
	db.achieve(userID, func(s *certificate.Stats) { s.PassedProjects++ })
}

// AcceptChallenge records an accepted challenge submission for the user.
func (db *DB) AcceptChallenge(userID string) {
	db.achieve(userID, func(s *certificate.Stats) { s.AcceptedChallenges++ })
}

func (db *DB) achieve(userID string, fn func(s *certificate.Stats)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := db.achievements[userID]
	fn(&s)
	db.achievements[userID] = s
}
