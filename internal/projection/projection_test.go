package projection_test

import (
	"testing"

	"attendly/internal/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_ExactlyAtTarget(t *testing.T) {
	res, err := projection.Project(100, 75, 75)
	require.NoError(t, err)

	assert.Equal(t, 75.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesToAttend)
	assert.Equal(t, 0, res.ClassesCanMiss)
	assert.Contains(t, res.Message, "exactly at 75%")
}

func TestProject_BelowTarget(t *testing.T) {
	res, err := projection.Project(100, 50, 75)
	require.NoError(t, err)

	assert.Equal(t, 50.0, res.CurrentPercent)
	assert.Equal(t, 100, res.ClassesToAttend, "ceil((75-50)/0.25)")
	assert.Equal(t, 0, res.ClassesCanMiss)
	assert.Contains(t, res.Message, "100 more consecutive classes")
}

func TestProject_AboveTarget(t *testing.T) {
	res, err := projection.Project(20, 20, 75)
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesToAttend)
	assert.Equal(t, 6, res.ClassesCanMiss, "floor((20-15)*100/75)")
	assert.Contains(t, res.Message, "miss up to 6 classes")
}

func TestProject_AboveTargetNoSlack(t *testing.T) {
	// 3/4 = 75% > 70%, but missing even one class drops below.
	res, err := projection.Project(4, 3, 70)
	require.NoError(t, err)

	assert.Equal(t, 75.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesCanMiss)
	assert.Contains(t, res.Message, "attend all future classes")
}

func TestProject_RoundsCurrentPercent(t *testing.T) {
	res, err := projection.Project(3, 2, 50)
	require.NoError(t, err)

	assert.Equal(t, 66.67, res.CurrentPercent)
	assert.Equal(t, 1, res.ClassesCanMiss)
}

func TestProject_ZeroClassesHeld(t *testing.T) {
	res, err := projection.Project(0, 0, 75)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesToAttend)
	assert.Equal(t, 0, res.ClassesCanMiss)
}

func TestProject_FullTargetUnreachable(t *testing.T) {
	_, err := projection.Project(100, 99, 100)
	assert.ErrorIs(t, err, projection.ErrUnreachable)
}

func TestProject_FullTargetAlreadyThere(t *testing.T) {
	res, err := projection.Project(10, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesToAttend)
}

func TestProject_ZeroTargetUnbounded(t *testing.T) {
	_, err := projection.Project(10, 5, 0)
	assert.ErrorIs(t, err, projection.ErrUnbounded)
}

func TestProject_ZeroTargetZeroAttendance(t *testing.T) {
	res, err := projection.Project(10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.CurrentPercent)
	assert.Equal(t, 0, res.ClassesCanMiss)
}

func TestProject_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name           string
		held, attended int
		target         float64
	}{
		{"negative held", -1, 0, 75},
		{"negative attended", 10, -1, 75},
		{"attended exceeds held", 10, 11, 75},
		{"target below range", 10, 5, -1},
		{"target above range", 10, 5, 101},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := projection.Project(tc.held, tc.attended, tc.target)
			assert.ErrorIs(t, err, projection.ErrInvalidInput)
		})
	}
}
