package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

type personRepository interface {
	List(ctx context.Context, t models.PersonType) ([]models.Person, error)
	Get(ctx context.Context, t models.PersonType, id string) (*models.Person, error)
	FindByEmail(ctx context.Context, t models.PersonType, email string) (*models.Person, error)
	Create(ctx context.Context, p models.Person) (string, error)
	Replace(ctx context.Context, p models.Person) error
	Delete(ctx context.Context, t models.PersonType, id string) error
	Subscribe(ctx context.Context, t models.PersonType) (*repository.Stream[models.Person], error)
}

type photoRepository interface {
	Save(ctx context.Context, t models.PersonType, id, ext string, body io.Reader) (string, error)
}

// studentLookup resolves the student profile behind a session.
type studentLookup interface {
	CurrentStudent(ctx context.Context, session models.Session) (*models.Person, error)
}

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PersonService serves the student, teacher and staff screens.
type PersonService struct {
	repo         personRepository
	photos       photoRepository
	validator    *validator.Validate
	logger       *zap.Logger
	allowedMIMEs map[string]bool
	changes      changeNotifier
}

// PersonServiceParams groups constructor dependencies.
type PersonServiceParams struct {
	Repo         personRepository
	Photos       photoRepository
	Validator    *validator.Validate
	Logger       *zap.Logger
	AllowedMIMEs []string
	Changes      changeNotifier
}

// NewPersonService constructs the person service.
func NewPersonService(params PersonServiceParams) *PersonService {
	if params.Validator == nil {
		params.Validator = viewstate.NewValidator()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	allowed := map[string]bool{}
	for _, mime := range params.AllowedMIMEs {
		allowed[strings.ToLower(mime)] = true
	}
	if len(allowed) == 0 {
		for mime := range photoExtensions {
			allowed[mime] = true
		}
	}
	return &PersonService{
		repo:         params.Repo,
		photos:       params.Photos,
		validator:    params.Validator,
		logger:       params.Logger,
		allowedMIMEs: allowed,
		changes:      params.Changes,
	}
}

func notFoundMessage(t models.PersonType) string {
	return string(t) + " not found"
}

func (s *PersonService) listConfig(t models.PersonType) viewstate.ListConfig[models.Person] {
	return viewstate.ListConfig[models.Person]{
		Projector: viewstate.Projector[models.Person]{
			SearchFields: func(p models.Person) []string { return []string{p.FirstName, p.LastName, p.Email} },
			ClassOf:      func(p models.Person) string { return p.ClassName },
			Less: func(a, b models.Person) bool {
				if fa, fb := strings.ToLower(a.FirstName), strings.ToLower(b.FirstName); fa != fb {
					return fa < fb
				}
				return strings.ToLower(a.LastName) < strings.ToLower(b.LastName)
			},
		},
		Fetch:     func(ctx context.Context) ([]models.Person, error) { return s.repo.List(ctx, t) },
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Person], error) { return s.repo.Subscribe(ctx, t) }),
		Delete: func(ctx context.Context, id string) error {
			if err := s.repo.Delete(ctx, t, id); err != nil {
				return err
			}
			notifyChange(ctx, s.changes)
			return nil
		},
		Logger: s.logger,
	}
}

// List returns the projected list of people of type t.
func (s *PersonService) List(ctx context.Context, t models.PersonType, q ListQuery) ([]models.Person, error) {
	if !t.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown person type")
	}
	return fetchList(ctx, s.listConfig(t), q.filter(), notFoundMessage(t))
}

// Watch opens a live list of people of type t.
func (s *PersonService) Watch(ctx context.Context, t models.PersonType, q ListQuery) (*ListWatch[models.Person], error) {
	if !t.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown person type")
	}
	return watchList(ctx, s.listConfig(t), q.filter(), notFoundMessage(t))
}

// Get returns one person.
func (s *PersonService) Get(ctx context.Context, t models.PersonType, id string) (*models.Person, error) {
	p, err := s.repo.Get(ctx, t, id)
	if err != nil {
		return nil, gatewayError(err, notFoundMessage(t))
	}
	return p, nil
}

// Create validates in and stores a new person of type t.
func (s *PersonService) Create(ctx context.Context, t models.PersonType, in models.PersonInput) (*models.Person, error) {
	created, err := submitForm(ctx, s.logger, in, s.builder(t, ""), func(ctx context.Context, p models.Person) (models.Person, error) {
		id, err := s.repo.Create(ctx, p)
		if err != nil {
			return p, err
		}
		p.ID = id
		return p, nil
	}, notFoundMessage(t))
	if err != nil {
		return nil, err
	}
	notifyChange(ctx, s.changes)
	return &created, nil
}

// Update replaces the editable fields of an existing person. The profile photo is kept.
func (s *PersonService) Update(ctx context.Context, t models.PersonType, id string, in models.PersonInput) (*models.Person, error) {
	updated, err := submitForm(ctx, s.logger, in, s.builder(t, id), func(ctx context.Context, p models.Person) (models.Person, error) {
		existing, err := s.repo.Get(ctx, t, id)
		if err != nil {
			return p, err
		}
		p.ProfilePhoto = existing.ProfilePhoto
		return p, s.repo.Replace(ctx, p)
	}, notFoundMessage(t))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a person.
func (s *PersonService) Delete(ctx context.Context, t models.PersonType, id string) error {
	if err := s.repo.Delete(ctx, t, id); err != nil {
		return gatewayError(err, notFoundMessage(t))
	}
	notifyChange(ctx, s.changes)
	return nil
}

// Me returns the profile of the caller, looked up by uid and then by email.
func (s *PersonService) Me(ctx context.Context, session models.Session) (*models.Person, error) {
	t, ok := session.Role.PersonType()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no profile for this account")
	}
	p, err := s.repo.Get(ctx, t, session.UserID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, gatewayError(err, notFoundMessage(t))
	}
	if session.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, notFoundMessage(t))
	}
	p, err = s.repo.FindByEmail(ctx, t, strings.ToLower(session.Email))
	if err != nil {
		return nil, gatewayError(err, notFoundMessage(t))
	}
	return p, nil
}

// CurrentStudent returns the student profile of a student session.
func (s *PersonService) CurrentStudent(ctx context.Context, session models.Session) (*models.Person, error) {
	if session.Role != models.RoleStudent {
		return nil, forbidden("student role required")
	}
	return s.Me(ctx, session)
}

// UploadPhoto stores a profile photo. Non-admins may only change their own photo.
func (s *PersonService) UploadPhoto(ctx context.Context, session models.Session, t models.PersonType, id, contentType string, body io.Reader) (string, error) {
	if !session.IsAdmin() && session.UserID != id {
		return "", forbidden("cannot change another profile photo")
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, known := photoExtensions[mime]
	if !known || !s.allowedMIMEs[mime] {
		return "", appErrors.Validation("unsupported photo type", map[string]string{"photo": "must be one of: jpeg, png, webp"})
	}
	if s.photos == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "photo storage not configured")
	}
	stored, err := s.photos.Save(ctx, t, id, ext, body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return "", appErrors.Validation("photo too large", map[string]string{"photo": "exceeds the upload limit"})
		}
		return "", gatewayError(err, notFoundMessage(t))
	}
	s.logger.Info("profile photo stored", zap.String("type", string(t)), zap.String("id", id))
	return stored, nil
}

func (s *PersonService) builder(t models.PersonType, id string) func(models.PersonInput) (models.Person, error) {
	return func(in models.PersonInput) (models.Person, error) {
		message := "invalid " + string(t) + " payload"
		if !t.Valid() {
			return models.Person{}, appErrors.Clone(appErrors.ErrValidation, "unknown person type")
		}
		details := map[string]string{}
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			fields := viewstate.FieldErrors(err)
			if fields == nil {
				return models.Person{}, err
			}
			for k, v := range fields {
				details[k] = v
			}
		}
		className := strings.TrimSpace(in.ClassName)
		switch t {
		case models.PersonStudent:
			if className == "" {
				details["class_name"] = "is required"
			}
		case models.PersonTeacher:
			className = models.NormalizeClassName(className)
		}
		if len(details) > 0 {
			return models.Person{}, appErrors.Validation(message, details)
		}
		age, _ := strconv.Atoi(strings.TrimSpace(in.Age))
		return models.Person{
			ID:          id,
			Type:        t,
			FirstName:   strings.TrimSpace(in.FirstName),
			LastName:    strings.TrimSpace(in.LastName),
			Email:       strings.ToLower(strings.TrimSpace(in.Email)),
			Phone:       strings.TrimSpace(in.Phone),
			MobileNo:    strings.TrimSpace(in.MobileNo),
			ClassName:   className,
			RollNumber:  strings.TrimSpace(in.RollNumber),
			Gender:      in.Gender,
			DateOfBirth: in.DateOfBirth,
			Address:     strings.TrimSpace(in.Address),
			Age:         age,
			Department:  strings.TrimSpace(in.Department),
			Designation: strings.TrimSpace(in.Designation),
		}, nil
	}
}
