package sqlxrepos

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core/course"
)

func newTestCourse() course.Course {
	courseID, moduleID := uuid.New().String(), uuid.New().String()
	now := time.Now().UTC()
	return course.Course{
		ID:           courseID,
		Title:        "Go basics",
		Level:        course.LevelBeginner,
		Status:       course.StatusDraft,
		InstructorID: uuid.New().String(),
		Modules: []course.Module{{
			ID: moduleID, CourseID: courseID, Title: "Intro", Position: 1,
			Lessons: []course.Lesson{
				{ID: uuid.New().String(), ModuleID: moduleID, Title: "Setup", Type: course.LessonReading, DurationMinutes: 10, Position: 1},
				{ID: uuid.New().String(), ModuleID: moduleID, Title: "Hello", Type: course.LessonVideo, DurationMinutes: 15, Position: 2},
			},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCourseRepository_CreateCourse(t *testing.T) {
	t.Run("commits the whole tree", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCourseRepository(db)
		c := newTestCourse()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_modules")).
			WithArgs(c.Modules[0].ID, c.ID, "Intro", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_lessons")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_lessons")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		created, err := repo.CreateCourse(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, 25, created.DurationMinutes())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCourseRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_modules")).WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		_, err := repo.CreateCourse(context.Background(), newTestCourse())
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCourseRepository_GetCourse(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCourseRepository(db)
	c := newTestCourse()
	mod := c.Modules[0]
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs(c.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "category", "level", "instructor_id", "status", "created_at", "updated_at"}).
			AddRow(c.ID, c.Title, "", "dev", c.Level, c.InstructorID, course.StatusPublished, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_modules WHERE course_id::text = ANY($1) ORDER BY position")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "title", "position"}).
			AddRow(mod.ID, c.ID, mod.Title, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_lessons WHERE module_id::text = ANY($1) ORDER BY position")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "module_id", "title", "type", "content", "duration_minutes", "position"}).
			AddRow(mod.Lessons[0].ID, mod.ID, "Setup", "reading", "", 10, 1).
			AddRow(mod.Lessons[1].ID, mod.ID, "Hello", "video", "", 15, 2))

	got, err := repo.GetCourse(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())
	require.Len(t, got.Modules, 1)
	assert.Len(t, got.Modules[0].Lessons, 2)
	assert.Equal(t, []string{mod.Lessons[0].ID, mod.Lessons[1].ID}, got.LessonIDs())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_UpdateCourse_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.UpdateCourse(context.Background(), newTestCourse())
	assert.Equal(t, course.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepository_Enrollments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()
	courseID, usrID := uuid.New().String(), uuid.New().String()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE course_id = $1 AND user_id = $2")).
		WithArgs(courseID, usrID).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "user_id", "completed_lesson_ids", "enrolled_at", "completed_at"}))
	_, err := repo.GetEnrollment(ctx, courseID, usrID)
	assert.Equal(t, course.ErrEnrollmentNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (course_id, user_id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	e, err := repo.SaveEnrollment(ctx, course.Enrollment{CourseID: courseID, UserID: usrID, EnrolledAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, []string{}, e.CompletedLessonIDs)
	assert.Nil(t, e.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
