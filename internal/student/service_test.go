package student_test

import (
	"context"
	"testing"

	"attendly/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(roll string) student.Student {
	return student.Student{
		Name:       "Safwan",
		RollNumber: roll,
		Course:     "B.Tech CSE",
		Semester:   "4",
		Email:      "safwan@example.com",
	}
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)

	created, err := svc.Create(context.Background(), profile("CSE-042"))
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "CSE-042", got.RollNumber)
}

func TestCreate_RejectsDuplicateRollNumber(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, profile("CSE-042"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, profile("CSE-042"))
	assert.ErrorIs(t, err, student.ErrRollNumberTaken)
}

func TestUpdate_ReplacesFieldsKeepingID(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, profile("CSE-042"))
	require.NoError(t, err)

	created.Course = "B.Tech ECE"
	created.Semester = "5"
	require.NoError(t, svc.Update(ctx, created))

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "B.Tech ECE", got.Course)
	assert.Equal(t, "5", got.Semester)
}

func TestUpdate_UnknownStudent(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)

	st := profile("CSE-042")
	st.ID = "no-such-id"
	err := svc.Update(context.Background(), st)
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestList_OrderedByRollNumber(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)
	ctx := context.Background()

	for _, roll := range []string{"CSE-101", "CSE-007", "CSE-050"} {
		_, err := svc.Create(ctx, profile(roll))
		require.NoError(t, err)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "CSE-007", all[0].RollNumber)
	assert.Equal(t, "CSE-050", all[1].RollNumber)
	assert.Equal(t, "CSE-101", all[2].RollNumber)
}

func TestGetByRoll(t *testing.T) {
	svc := student.NewService(student.NewMemoryStore(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, profile("CSE-042"))
	require.NoError(t, err)

	got, err := svc.GetByRoll(ctx, "CSE-042")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetByRoll(ctx, "CSE-999")
	assert.ErrorIs(t, err, student.ErrNotFound)
}
