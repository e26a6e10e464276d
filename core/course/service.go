package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")

	errNotPublished  = "this course is not open for enrollment"
	errUnknownLesson = "this lesson does not belong to the course"
)

type (
	Repository interface {
		// CreateCourse saves the course along with its module tree.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields; courses come with their module tree.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// UpdateCourse replaces the course module tree.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		GetEnrollment(ctx context.Context, courseID, userID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		// SaveEnrollment creates or updates an enrollment.
		SaveEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	}

	Service interface {
		Create(ctx context.Context, usr user.User, nc NewCourse) (Course, error)
		Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Get(ctx context.Context, usr user.User, id string) (Course, error)
		Update(ctx context.Context, usr user.User, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, usr user.User, id string) error

		// Enroll is idempotent: enrolling twice returns the existing enrollment.
		Enroll(ctx context.Context, usr user.User, courseID string) (Enrollment, error)
		CompleteLesson(ctx context.Context, usr user.User, courseID, lessonID string) (Progress, error)
		Progress(ctx context.Context, usr user.User, courseID string) (Progress, error)
		// ListEnrollments returns the progress of every course usr is enrolled in.
		ListEnrollments(ctx context.Context, usr user.User) ([]Progress, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, usr user.User, nc NewCourse) (Course, error) {
	if !CanCreateCourse(usr) {
		return Course{}, core.ErrPermissionDenied
	}
	now := time.Now().UTC()
	c := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		Category:     nc.Category,
		Level:        defaultStr(nc.Level, LevelBeginner),
		InstructorID: usr.ID,
		Status:       defaultStr(nc.Status, StatusDraft),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Modules = buildModules(c, nc.Modules)
	c, err := svc.repo.CreateCourse(ctx, c)
	return c, errors.Wrap(err, "creating course")
}

func (svc *service) Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !usr.SeesEverything() {
		filter.VisibleTo = usr.ID
	}
	courses, err := svc.repo.QueryCourses(ctx, filter, core.CleanOrderings(ordering, OrderingFields))
	return courses, errors.Wrap(err, "querying courses")
}

// Get returns ErrNotFound for courses the user cannot see.
func (svc *service) Get(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.VisibleTo(usr) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Course{}, err
	}
	if !c.EditableBy(usr) {
		return Course{}, core.ErrPermissionDenied
	}
	c = uc.apply(c)
	if uc.Modules != nil {
		c.Modules = buildModules(c, uc.Modules)
	}
	c.UpdatedAt = time.Now().UTC()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	c, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if !c.DeletableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, c.ID), "deleting course")
}

func (svc *service) Enroll(ctx context.Context, usr user.User, courseID string) (Enrollment, error) {
	c, err := svc.Get(ctx, usr, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	e, err := svc.repo.GetEnrollment(ctx, c.ID, usr.ID)
	if err == nil {
		return e, nil
	}
	if errors.Cause(err) != ErrEnrollmentNotFound {
		return Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	if !c.IsPublished() {
		return Enrollment{}, core.NewFieldError("course", errNotPublished)
	}

	e = Enrollment{
		CourseID:           c.ID,
		UserID:             usr.ID,
		CompletedLessonIDs: []string{},
		EnrolledAt:         time.Now().UTC(),
	}
	e, err = svc.repo.SaveEnrollment(ctx, e)
	return e, errors.Wrap(err, "saving enrollment")
}

func (svc *service) CompleteLesson(ctx context.Context, usr user.User, courseID, lessonID string) (Progress, error) {
	c, err := svc.Get(ctx, usr, courseID)
	if err != nil {
		return Progress{}, err
	}
	if !c.HasLesson(lessonID) {
		return Progress{}, core.NewFieldError("lesson", errUnknownLesson)
	}
	e, err := svc.repo.GetEnrollment(ctx, c.ID, usr.ID)
	if err != nil {
		return Progress{}, err
	}

	if !core.StringInSlice(lessonID, e.CompletedLessonIDs) {
		e.CompletedLessonIDs = append(e.CompletedLessonIDs, lessonID)
		prog := ComputeProgress(c, e)
		if e.CompletedAt == nil && prog.CompletedLessons == prog.TotalLessons {
			now := time.Now().UTC()
			e.CompletedAt = &now
		}
		if e, err = svc.repo.SaveEnrollment(ctx, e); err != nil {
			return Progress{}, errors.Wrap(err, "saving enrollment")
		}
	}
	return ComputeProgress(c, e), nil
}

func (svc *service) Progress(ctx context.Context, usr user.User, courseID string) (Progress, error) {
	c, err := svc.Get(ctx, usr, courseID)
	if err != nil {
		return Progress{}, err
	}
	e, err := svc.repo.GetEnrollment(ctx, c.ID, usr.ID)
	if err != nil {
		return Progress{}, err
	}
	return ComputeProgress(c, e), nil
}

func (svc *service) ListEnrollments(ctx context.Context, usr user.User) ([]Progress, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{UserID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	progs := make([]Progress, 0, len(enrollments))
	if len(enrollments) == 0 {
		return progs, nil
	}

	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	courses, err := svc.repo.QueryCourses(ctx, &QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}
	byID := make(map[string]Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	for _, e := range enrollments {
		if c, ok := byID[e.CourseID]; ok {
			progs = append(progs, ComputeProgress(c, e))
		}
	}
	return progs, nil
}

// buildModules turns the module inputs into the course tree; known module & lesson IDs are kept.
func buildModules(c Course, inputs []ModuleInput) []Module {
	knownModules := make(map[string]bool)
	knownLessons := make(map[string]bool)
	for _, m := range c.Modules {
		knownModules[m.ID] = true
		for _, l := range m.Lessons {
			knownLessons[l.ID] = true
		}
	}

	modules := make([]Module, 0, len(inputs))
	for i, mi := range inputs {
		m := Module{
			ID:       keepOrNewID(mi.ID, knownModules),
			CourseID: c.ID,
			Title:    mi.Title,
			Position: i + 1,
			Lessons:  make([]Lesson, 0, len(mi.Lessons)),
		}
		for j, li := range mi.Lessons {
			m.Lessons = append(m.Lessons, Lesson{
				ID:              keepOrNewID(li.ID, knownLessons),
				ModuleID:        m.ID,
				Title:           li.Title,
				Type:            defaultStr(li.Type, LessonReading),
				Content:         li.Content,
				DurationMinutes: li.DurationMinutes,
				Position:        j + 1,
			})
		}
		modules = append(modules, m)
	}
	return modules
}

// keepOrNewID keeps a known ID only once.
func keepOrNewID(id string, known map[string]bool) string {
	if id != "" && known[id] {
		known[id] = false
		return id
	}
	return uuid.New().String()
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
