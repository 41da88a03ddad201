package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/core/user"
	"github.com/trezcool/madrasa/tests"
)

func Test_paymentApi_permissions(t *testing.T) {
	e := setup(t)
	student := testutil.CreateUser(t, e.app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/v1/payments",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "not an admin",
			method:   http.MethodPost,
			path:     "/v1/payments",
			token:    getToken(t, e.app.Conf, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "not an admin: retrieve",
			path:     "/v1/payments/lol",
			token:    getToken(t, e.app.Conf, student),
			wantCode: http.StatusForbidden,
		},
	})
}

func Test_paymentApi_create(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, e.app.Repos.Users, "Root", "root@test.sa", user.AllRoles...)
	token := getToken(t, e.app.Conf, admin)
	seed := e.app.SeedBooking(t)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "invalid data",
			method:   http.MethodPost,
			path:     "/v1/payments",
			body:     []byte(`{"amount": 100, "currency": "sar"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"booking_id": "this field is required",
				"currency": "must be a 3-letter ISO 4217 currency code"
			}`),
		},
		{
			name:     "invalid status",
			method:   http.MethodPost,
			path:     "/v1/payments",
			body:     []byte(`{"booking_id": "b1", "amount": 100, "currency": "SAR", "status": "refunded"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown booking",
			method:   http.MethodPost,
			path:     "/v1/payments",
			body:     marchallObj(t, payment.NewPayment{BookingID: testutil.NewID(), Amount: 100, Currency: "SAR"}),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	})

	// pending payment: the booking is untouched
	rec := e.do(newAuthRequest(http.MethodPost, "/v1/payments", token,
		marchallObj(t, payment.NewPayment{BookingID: seed.Booking.ID, Amount: 15000, Currency: "SAR"})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pending payment.Payment
	unmarshal(t, rec, &pending)
	assert.Equal(t, payment.StatusPending, pending.Status)
	assert.Equal(t, payment.ProviderManual, pending.Provider)
	assert.False(t, pending.PaidAt.Valid)

	b, err := e.app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, 0, e.app.DB.RoomCount())

	// completed payment: the booking is finalized right away
	rec = e.do(newAuthRequest(http.MethodPost, "/v1/payments", token, marchallObj(t, payment.NewPayment{
		BookingID: seed.Booking.ID,
		Amount:    15000,
		Currency:  "SAR",
		Status:    payment.StatusCompleted,
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var completed payment.Payment
	unmarshal(t, rec, &completed)
	assert.Equal(t, payment.StatusCompleted, completed.Status)
	assert.True(t, completed.PaidAt.Valid)

	b, err = e.app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, 1, e.app.DB.RoomCount())
}

func Test_paymentApi_retrieve(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.app.Repos.Users, "Root", "root@test.sa", user.AllRoles...)
	token := getToken(t, e.app.Conf, admin)
	seed := e.app.SeedBooking(t)

	p, err := e.app.Payments.Create(context.Background(), payment.NewPayment{BookingID: seed.Booking.ID, Amount: 500, Currency: "SAR"})
	require.NoError(t, err)

	runHTTPTests(t, e, []httpTest{
		{name: "not found", path: "/v1/payments/lol", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		{name: "found", path: "/v1/payments/" + p.ID, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, p)},
	})
}

func Test_paymentApi_updateStatus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, e.app.Repos.Users, "Root", "root@test.sa", user.AllRoles...)
	token := getToken(t, e.app.Conf, admin)
	seed := e.app.SeedBooking(t)

	p, err := e.app.Payments.Create(ctx, payment.NewPayment{BookingID: seed.Booking.ID, Amount: 500, Currency: "SAR"})
	require.NoError(t, err)
	path := "/v1/payments/" + p.ID + "/status"

	runHTTPTests(t, e, []httpTest{
		{
			name:     "status missing",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status": "this field is required"}`),
		},
		{
			name:     "unknown payment",
			method:   http.MethodPatch,
			path:     "/v1/payments/lol/status",
			body:     []byte(`{"status": "completed"}`),
			token:    token,
			wantCode: http.StatusNotFound,
		},
		{name: "fail", method: http.MethodPatch, path: path, body: []byte(`{"status": "failed"}`), token: token, wantCode: http.StatusOK},
		{name: "retry", method: http.MethodPatch, path: path, body: []byte(`{"status": "pending"}`), token: token, wantCode: http.StatusOK},
		{name: "complete", method: http.MethodPatch, path: path, body: []byte(`{"status": "completed"}`), token: token, wantCode: http.StatusOK},
		{name: "complete again", method: http.MethodPatch, path: path, body: []byte(`{"status": "completed"}`), token: token, wantCode: http.StatusOK},
		{
			name:     "fail after completion",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"status": "failed"}`),
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: payment.ErrInvalidTransition.Error()}),
		},
	})

	got, err := e.app.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)

	b, err := e.app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, 1, e.app.DB.RoomCount())
	assert.Equal(t, 2, e.app.Jobs.Len(), "the confirmation mails are queued once")
}
