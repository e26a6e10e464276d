package timelog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("time log")

	errUnknownEntity = "unknown entity"
)

type (
	Repository interface {
		CreateTimeLog(ctx context.Context, tl TimeLog) (TimeLog, error)
		// QueryTimeLogs applies AND operation on available QueryFilter fields.
		QueryTimeLogs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]TimeLog, error)
		GetTimeLog(ctx context.Context, id string) (TimeLog, error)
		UpdateTimeLog(ctx context.Context, tl TimeLog) (TimeLog, error)
		DeleteTimeLog(ctx context.Context, id string) error
	}

	// EntityResolver returns the title of the entity a time log is attached to.
	// It fails with a not found error when the entity does not exist or usr cannot see it.
	EntityResolver interface {
		ResolveEntity(ctx context.Context, usr user.User, entityType, entityID string) (string, error)
	}

	Service interface {
		Create(ctx context.Context, usr user.User, nt NewTimeLog) (TimeLog, error)
		// Query only returns the user's own logs unless usr is an admin or a manager.
		Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]TimeLog, error)
		Get(ctx context.Context, usr user.User, id string) (TimeLog, error)
		Update(ctx context.Context, usr user.User, id string, ut UpdateTimeLog) (TimeLog, error)
		Delete(ctx context.Context, usr user.User, id string) error
		Summarize(ctx context.Context, usr user.User, filter *QueryFilter, groupBy string) (Summary, error)
	}

	service struct {
		repo     Repository
		resolver EntityResolver
		users    user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, resolver EntityResolver, users user.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(resolver, "resolver"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()

	return &service{repo: repo, resolver: resolver, users: users}
}

func (svc *service) Create(ctx context.Context, usr user.User, nt NewTimeLog) (TimeLog, error) {
	title, err := svc.resolver.ResolveEntity(ctx, usr, nt.EntityType, nt.EntityID)
	if err != nil {
		if core.IsNotFound(err) {
			return TimeLog{}, core.NewFieldError("entity_id", errUnknownEntity)
		}
		return TimeLog{}, errors.Wrap(err, "resolving entity")
	}

	now := time.Now().UTC()
	tl := TimeLog{
		ID:              uuid.New().String(),
		UserID:          usr.ID,
		EntityType:      nt.EntityType,
		EntityID:        nt.EntityID,
		EntityTitle:     title,
		Date:            nt.Date,
		DurationMinutes: nt.DurationMinutes,
		Description:     nt.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tl, err = svc.repo.CreateTimeLog(ctx, tl)
	return tl, errors.Wrap(err, "creating time log")
}

func (svc *service) Query(ctx context.Context, usr user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]TimeLog, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !usr.SeesEverything() {
		filter.UserIDs = []string{usr.ID}
	}
	logs, err := svc.repo.QueryTimeLogs(ctx, filter, core.CleanOrderings(ordering, OrderingFields))
	return logs, errors.Wrap(err, "querying time logs")
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (TimeLog, error) {
	tl, err := svc.repo.GetTimeLog(ctx, id)
	if err != nil {
		return TimeLog{}, err
	}
	if !tl.VisibleTo(usr) {
		return TimeLog{}, ErrNotFound
	}
	return tl, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id string, ut UpdateTimeLog) (TimeLog, error) {
	tl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return TimeLog{}, err
	}
	if !tl.EditableBy(usr) {
		return TimeLog{}, core.ErrPermissionDenied
	}
	tl = ut.apply(tl)
	tl.UpdatedAt = time.Now().UTC()
	tl, err = svc.repo.UpdateTimeLog(ctx, tl)
	return tl, errors.Wrap(err, "updating time log")
}

func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	tl, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if !tl.EditableBy(usr) {
		return core.ErrPermissionDenied
	}
	return errors.Wrap(svc.repo.DeleteTimeLog(ctx, tl.ID), "deleting time log")
}

func (svc *service) Summarize(ctx context.Context, usr user.User, filter *QueryFilter, groupBy string) (Summary, error) {
	logs, err := svc.Query(ctx, usr, filter, nil)
	if err != nil {
		return Summary{}, err
	}

	var names map[string]string
	if groupBy == GroupByUser {
		ids := make([]string, 0, len(logs))
		for _, tl := range logs {
			ids = append(ids, tl.UserID)
		}
		users, err := svc.users.Query(ctx, &user.QueryFilter{IDs: core.CleanStrings(ids)}, nil)
		if err != nil {
			return Summary{}, errors.Wrap(err, "querying users")
		}
		names = make(map[string]string, len(users))
		for _, u := range users {
			names[u.ID] = u.DisplayName()
		}
	}
	return Summarize(logs, groupBy, names), nil
}

type entityResolver struct {
	projects project.Service
	courses  course.Service
}

// NewEntityResolver resolves projects & tasks through the project service and courses through the course service.
func NewEntityResolver(projects project.Service, courses course.Service) EntityResolver {
	vala.BeginValidation().Validate(
		vala.IsNotNil(projects, "projects"),
		vala.IsNotNil(courses, "courses"),
	).CheckAndPanic()

	return &entityResolver{projects: projects, courses: courses}
}

func (r *entityResolver) ResolveEntity(ctx context.Context, usr user.User, entityType, entityID string) (string, error) {
	switch entityType {
	case EntityProject:
		p, err := r.projects.Get(ctx, usr, entityID)
		return p.Name, err
	case EntityTask:
		t, err := r.projects.GetTask(ctx, usr, entityID)
		return t.Title, err
	case EntityCourse:
		c, err := r.courses.Get(ctx, usr, entityID)
		return c.Title, err
	}
	return "", core.NewNotFoundError(entityType)
}
