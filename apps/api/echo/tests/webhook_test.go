package tests

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/payment"
	"github.com/trezcool/madrasa/services/gateway"
	"github.com/trezcool/madrasa/tests"
)

const omisePath = "/v1/webhooks/omise"

type webhookResponse struct {
	Status  string           `json:"status"`
	Payment *payment.Payment `json:"payment"`
}

func omiseBody(t *testing.T, eventID string) []byte {
	return marchallObj(t, map[string]string{"id": eventID, "key": "charge.complete"})
}

func Test_webhookApi_omise_errors(t *testing.T) {
	e := setup(t)

	runHTTPTests(t, e, []httpTest{
		{
			name:     "missing event id",
			method:   http.MethodPost,
			path:     omisePath,
			body:     []byte(`{"key": "charge.complete"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"id": "this field is required"}`),
		},
		{
			name:     "unverified event",
			method:   http.MethodPost,
			path:     omisePath,
			body:     omiseBody(t, "evnt_forged"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "webhook event could not be verified"}),
		},
	})
}

func Test_webhookApi_omise_ignored(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	seed := e.app.SeedBooking(t)

	e.verifier.add("evnt_pending", gateway.ChargeResult{ChargeID: "chrg_pending"})
	e.verifier.add("evnt_unknown", gateway.ChargeResult{ChargeID: "chrg_unknown", Status: payment.StatusCompleted})

	// a completed payment cannot fail afterwards
	_, err := e.app.Payments.Create(ctx, payment.NewPayment{
		BookingID:   seed.Booking.ID,
		Amount:      15000,
		Currency:    "THB",
		Status:      payment.StatusCompleted,
		Provider:    gateway.ProviderOmise,
		ProviderRef: "chrg_done",
	})
	require.NoError(t, err)
	e.verifier.add("evnt_late_failure", gateway.ChargeResult{ChargeID: "chrg_done", Status: payment.StatusFailed})

	ignored := marchallObj(t, map[string]string{"status": "ignored"})
	runHTTPTests(t, e, []httpTest{
		{name: "pending charge", method: http.MethodPost, path: omisePath, body: omiseBody(t, "evnt_pending"), wantCode: http.StatusOK, wantData: ignored},
		{name: "unknown charge without booking", method: http.MethodPost, path: omisePath, body: omiseBody(t, "evnt_unknown"), wantCode: http.StatusOK, wantData: ignored},
		{name: "failure after completion", method: http.MethodPost, path: omisePath, body: omiseBody(t, "evnt_late_failure"), wantCode: http.StatusOK, wantData: ignored},
	})

	p, err := e.app.Repos.Payments.GetPaymentByProviderRef(ctx, gateway.ProviderOmise, "chrg_done")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
}

func Test_webhookApi_omise_completesKnownPayment(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	seed := e.app.SeedBooking(t)

	p, err := e.app.Payments.Create(ctx, payment.NewPayment{
		BookingID:   seed.Booking.ID,
		Amount:      15000,
		Currency:    "THB",
		Provider:    gateway.ProviderOmise,
		ProviderRef: "chrg_1",
	})
	require.NoError(t, err)
	e.verifier.add("evnt_1", gateway.ChargeResult{ChargeID: "chrg_1", Status: payment.StatusCompleted})

	// the gateway may deliver the same event more than once
	for i := 0; i < 2; i++ {
		rec := e.do(newRequest(http.MethodPost, omisePath, omiseBody(t, "evnt_1")))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res webhookResponse
		unmarshal(t, rec, &res)
		assert.Equal(t, "processed", res.Status)
		if assert.NotNil(t, res.Payment) {
			assert.Equal(t, p.ID, res.Payment.ID)
			assert.Equal(t, payment.StatusCompleted, res.Payment.Status)
			assert.True(t, res.Payment.PaidAt.Valid)
		}
	}

	b, err := e.app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.True(t, b.PaymentReceived)
	assert.Equal(t, 1, e.app.DB.RoomCount())

	for _, uid := range []string{seed.Student.ID, seed.TeacherUser.ID} {
		notifs, err := e.app.Notifications.List(ctx, uid, notification.QueryFilter{})
		require.NoError(t, err)
		if assert.Len(t, notifs, 1, "one confirmation per participant") {
			assert.Equal(t, notification.TypeBookingConfirmed, notifs[0].Type)
		}
	}
	assert.Equal(t, 2, e.app.Jobs.Len(), "student and teacher mails are queued once")
}

func Test_webhookApi_omise_createsUnknownPayment(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	seed := e.app.SeedBooking(t)

	e.verifier.add("evnt_2", gateway.ChargeResult{
		ChargeID:  "chrg_2",
		Status:    payment.StatusCompleted,
		BookingID: seed.Booking.ID,
		Amount:    20000,
		Currency:  "thb",
	})

	rec := e.do(newRequest(http.MethodPost, omisePath, omiseBody(t, "evnt_2")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res webhookResponse
	unmarshal(t, rec, &res)
	require.NotNil(t, res.Payment)
	assert.Equal(t, seed.Booking.ID, res.Payment.BookingID)
	assert.Equal(t, int64(20000), res.Payment.Amount)
	assert.Equal(t, "THB", res.Payment.Currency)
	assert.Equal(t, gateway.ProviderOmise, res.Payment.Provider)
	assert.Equal(t, "chrg_2", res.Payment.ProviderRef.String)

	b, err := e.app.Bookings.GetByID(ctx, seed.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Equal(t, 1, e.app.DB.RoomCount())
}

func Test_webhookApi_omise_concurrentDeliveries(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	seed := e.app.SeedBooking(t)

	e.verifier.add("evnt_3", gateway.ChargeResult{
		ChargeID:  "chrg_3",
		Status:    payment.StatusCompleted,
		BookingID: seed.Booking.ID,
		Amount:    20000,
		Currency:  "THB",
	})

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = e.do(newRequest(http.MethodPost, omisePath, omiseBody(t, "evnt_3"))).Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, e.app.DB.Writes("payments"), "a single payment is recorded")
	assert.Equal(t, 1, e.app.DB.RoomCount())

	count, err := e.app.Notifications.UnreadCount(ctx, seed.Student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_webhookApi_omise_unknownBooking(t *testing.T) {
	e := setup(t)

	for name, bookingID := range map[string]string{"missing booking": testutil.NewID(), "malformed booking id": "lol"} {
		t.Run(name, func(t *testing.T) {
			eventID := "evnt_" + bookingID
			e.verifier.add(eventID, gateway.ChargeResult{
				ChargeID:  "chrg_" + bookingID,
				Status:    payment.StatusCompleted,
				BookingID: bookingID,
				Amount:    20000,
				Currency:  "THB",
			})

			rec := e.do(newRequest(http.MethodPost, omisePath, omiseBody(t, eventID)))
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"status": "ignored"}`)}, rec)
		})
	}
	assert.Equal(t, 0, e.app.DB.Writes("payments"))
	assert.Equal(t, 0, e.app.Jobs.Len())
}
