package gateway

import (
	"context"
	"encoding/json"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/payment"
)

const (
	ProviderOmise = "omise"

	eventChargeComplete = "charge.complete"
)

var (
	ErrUnverified   = errors.New("gateway event could not be verified")
	ErrIgnoredEvent = errors.New("gateway event does not change a payment")
)

// ChargeResult is what a verified charge event means for the matching payment.
type ChargeResult struct {
	EventID     string
	ChargeID    string
	Status      payment.Status
	BookingID   string
	Amount      int64
	Currency    string
	FailureCode string
}

// DisabledVerifier rejects every event. It stands in for Omise when no keys are configured.
type DisabledVerifier struct{}

func (DisabledVerifier) VerifyEvent(context.Context, string) (ChargeResult, error) {
	return ChargeResult{}, errors.Wrap(ErrUnverified, "omise is not configured")
}

type OmiseVerifier struct {
	client *omise.Client
}

func NewOmiseVerifier(conf *core.Config) (*OmiseVerifier, error) {
	client, err := omise.NewClient(conf.OmisePublicKey, conf.OmiseSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating omise client")
	}
	return &OmiseVerifier{client: client}, nil
}

// VerifyEvent re-fetches the event from Omise and maps its charge onto a payment status.
func (v *OmiseVerifier) VerifyEvent(ctx context.Context, eventID string) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}

	ev := &omise.Event{}
	if err := v.client.Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return ChargeResult{}, errors.Wrap(ErrUnverified, err.Error())
	}
	if ev.Key != eventChargeComplete {
		return ChargeResult{}, errors.Wrap(ErrIgnoredEvent, ev.Key)
	}

	// ev.Data is decoded generically
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "encoding event data")
	}
	var ch omise.Charge
	if err = json.Unmarshal(raw, &ch); err != nil {
		return ChargeResult{}, errors.Wrap(err, "decoding charge")
	}
	return chargeResult(eventID, ch)
}

func chargeResult(eventID string, ch omise.Charge) (ChargeResult, error) {
	res := ChargeResult{
		EventID:  eventID,
		ChargeID: ch.ID,
		Amount:   ch.Amount,
		Currency: ch.Currency,
	}
	res.BookingID, _ = ch.Metadata["booking_id"].(string)
	if ch.FailureCode != nil {
		res.FailureCode = *ch.FailureCode
	}

	switch string(ch.Status) {
	case "successful":
		res.Status = payment.StatusCompleted
	case "failed", "expired", "reversed":
		res.Status = payment.StatusFailed
	default:
		return res, errors.Wrap(ErrIgnoredEvent, "charge "+string(ch.Status))
	}
	return res, nil
}
