package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

func TestStudentServiceRoster(t *testing.T) {
	fx := newGradebookFixture()
	fx.students.students[1].Active = false
	svc := NewStudentService(fx.students, fx.classes, nil, nil, nil)

	roster, err := svc.Roster(context.Background(), "class-7a")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "stu-1", roster[0].ID)
	assert.Equal(t, "stu-3", roster[1].ID)

	_, err = svc.Roster(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestStudentServiceCreate(t *testing.T) {
	fx := newGradebookFixture()
	svc := NewStudentService(fx.students, fx.classes, nil, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{NIS: " 010 ", FullName: "Eka", ClassID: "class-10"})
	require.NoError(t, err)
	assert.Equal(t, "010", student.NIS)
	assert.True(t, student.Active)

	roster, err := svc.Roster(context.Background(), "class-10")
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	_, err = svc.Create(context.Background(), CreateStudentRequest{NIS: "011", FullName: "Fajar", ClassID: "class-99"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Contains(t, appErr.Message, "class-99")
}

func TestStudentServiceUpdateMovesStudent(t *testing.T) {
	fx := newGradebookFixture()
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, true)
	svc := NewStudentService(fx.students, fx.classes, cache, nil, nil)

	student, err := svc.Update(context.Background(), "stu-3", UpdateStudentRequest{FullName: "Citra Lestari", ClassID: "class-10"})
	require.NoError(t, err)
	assert.Equal(t, "Citra Lestari", student.FullName)
	assert.Equal(t, "003", student.NIS)
	assert.Equal(t, "class-10", student.ClassID)
	assert.Equal(t, []string{RecapCachePattern("class-7a"), RecapCachePattern("class-10")}, store.deleted)

	roster, err := svc.Roster(context.Background(), "class-10")
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	_, err = svc.Update(context.Background(), "stu-3", UpdateStudentRequest{ClassID: "class-99"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	_, err = svc.Update(context.Background(), "missing", UpdateStudentRequest{NIS: "1"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestStudentServiceDeactivate(t *testing.T) {
	fx := newGradebookFixture()
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, true)
	svc := NewStudentService(fx.students, fx.classes, cache, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "stu-2"))
	roster, err := svc.Roster(context.Background(), "class-7a")
	require.NoError(t, err)
	assert.Len(t, roster, 2)
	assert.Equal(t, []string{RecapCachePattern("class-7a")}, store.deleted)

	// already inactive
	require.NoError(t, svc.Deactivate(context.Background(), "stu-2"))
	assert.Len(t, store.deleted, 1)

	err = svc.Deactivate(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
