package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

func TestClassServiceListFilters(t *testing.T) {
	fx := newGradebookFixture()
	svc := NewClassService(fx.classes, nil, nil, nil)

	classes, err := svc.List(context.Background(), ClassQuery{Jenjang: "ma"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "class-10", classes[0].ID)

	classes, err = svc.List(context.Background(), ClassQuery{HomeroomTeacherID: "teacher-1"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "class-7a", classes[0].ID)

	_, err = svc.List(context.Background(), ClassQuery{Level: "SD"})
	assert.Equal(t, appErrors.ErrUnknownLevel.Code, appErrors.FromError(err).Code)
}

func TestClassServiceGet(t *testing.T) {
	svc := NewClassService(newGradebookFixture().classes, nil, nil, nil)

	class, err := svc.Get(context.Background(), "class-7a")
	require.NoError(t, err)
	assert.Equal(t, models.LevelSMP, class.Level)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestClassServiceCreate(t *testing.T) {
	fx := newGradebookFixture()
	svc := NewClassService(fx.classes, nil, nil, nil)

	class, err := svc.Create(context.Background(), CreateClassRequest{Name: " 8B ", Level: "smp", GradeLevel: 8})
	require.NoError(t, err)
	assert.Equal(t, "8B", class.Name)
	assert.Equal(t, models.LevelSMP, class.Level)
	assert.Contains(t, fx.classes.classes, class.ID)

	_, err = svc.Create(context.Background(), CreateClassRequest{Name: "X", Level: "SMA", GradeLevel: 10})
	assert.Equal(t, appErrors.ErrUnknownLevel.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateClassRequest{Name: "X", Level: "MA", GradeLevel: 4})
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestClassServiceUpdate(t *testing.T) {
	fx := newGradebookFixture()
	store := newMemoryCache()
	cache := NewCacheService(store, nil, 0, nil, true)
	svc := NewClassService(fx.classes, cache, nil, nil)

	grade := 8
	teacher := "teacher-2"
	class, err := svc.Update(context.Background(), "class-7a", UpdateClassRequest{Name: "8A", GradeLevel: &grade, HomeroomTeacherID: &teacher})
	require.NoError(t, err)
	assert.Equal(t, "8A", class.Name)
	assert.Equal(t, 8, class.GradeLevel)
	assert.Equal(t, models.LevelSMP, class.Level)
	require.NotNil(t, class.HomeroomTeacherID)
	assert.Equal(t, "teacher-2", *class.HomeroomTeacherID)
	assert.Equal(t, []string{RecapCachePattern("class-7a")}, store.deleted)

	empty := ""
	class, err = svc.Update(context.Background(), "class-7a", UpdateClassRequest{HomeroomTeacherID: &empty})
	require.NoError(t, err)
	assert.Nil(t, class.HomeroomTeacherID)

	invalid := 13
	_, err = svc.Update(context.Background(), "class-7a", UpdateClassRequest{GradeLevel: &invalid})
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)

	_, err = svc.Update(context.Background(), "missing", UpdateClassRequest{Name: "X"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
