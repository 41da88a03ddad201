package points_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/events"
	"github.com/trezcool/madrasa/core/notification"
	"github.com/trezcool/madrasa/core/points"
	"github.com/trezcool/madrasa/core/user"
	"github.com/trezcool/madrasa/tests"
)

func TestService_Award(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, app.Repos.Users, "Amina", "amina@test.sa", user.RoleStudent)

	for _, pts := range []int{0, -3} {
		_, _, err := app.Points.Award(ctx, usr.ID, pts, "")
		var verr *core.ValidationError
		if assert.ErrorAs(t, err, &verr) {
			assert.Equal(t, points.ErrInvalidPoints, verr.Err)
		}
	}

	e, total, err := app.Points.Award(ctx, usr.ID, 15, "  quiz  ")
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	assert.Equal(t, "quiz", e.Reason)

	_, total, err = app.Points.Award(ctx, usr.ID, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	notifs, err := app.Notifications.List(ctx, usr.ID, notification.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, notifs, 2)

	jobs := app.Jobs.Jobs()
	require.Len(t, jobs, 2)
	ev, err := events.Decode(jobs[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, events.PointsAwarded{UserID: usr.ID, Points: 5, Total: 20}, ev)
}
