package repository

import (
	"context"
	"fmt"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// PersonRepository routes person operations to the collection of the person's type.
type PersonRepository struct {
	byType map[models.PersonType]*Collection[models.Person]
}

// NewPersonRepository binds the student, teacher and staff collections.
func NewPersonRepository(gw docstore.Gateway) *PersonRepository {
	r := &PersonRepository{byType: map[models.PersonType]*Collection[models.Person]{}}
	for _, t := range []models.PersonType{models.PersonStudent, models.PersonTeacher, models.PersonStaff} {
		r.byType[t] = NewCollection[models.Person](gw, t.Collection())
	}
	return r
}

func (r *PersonRepository) collection(t models.PersonType) (*Collection[models.Person], error) {
	c, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("person type %q: %w", t, docstore.ErrInvalidDocument)
	}
	return c, nil
}

// List returns every person of type t.
func (r *PersonRepository) List(ctx context.Context, t models.PersonType) ([]models.Person, error) {
	c, err := r.collection(t)
	if err != nil {
		return nil, err
	}
	people, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return withType(people, t), nil
}

// ListByClass returns the students of one class.
func (r *PersonRepository) ListByClass(ctx context.Context, className string) ([]models.Person, error) {
	people, err := r.byType[models.PersonStudent].Query(ctx, docstore.Where("class_name", className))
	if err != nil {
		return nil, err
	}
	return withType(people, models.PersonStudent), nil
}

// Get returns one person.
func (r *PersonRepository) Get(ctx context.Context, t models.PersonType, id string) (*models.Person, error) {
	c, err := r.collection(t)
	if err != nil {
		return nil, err
	}
	p, err := c.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Type = t
	return p, nil
}

// FindByEmail returns the first person of type t with the given email.
func (r *PersonRepository) FindByEmail(ctx context.Context, t models.PersonType, email string) (*models.Person, error) {
	c, err := r.collection(t)
	if err != nil {
		return nil, err
	}
	people, err := c.Query(ctx, docstore.Where("email", email))
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		return nil, fmt.Errorf("%s with email %s: %w", t, email, docstore.ErrNotFound)
	}
	p := people[0]
	p.Type = t
	return &p, nil
}

// Create stores p. A preset id (an account uid) is kept; otherwise one is generated.
func (r *PersonRepository) Create(ctx context.Context, p models.Person) (string, error) {
	c, err := r.collection(p.Type)
	if err != nil {
		return "", err
	}
	if p.ID != "" {
		return p.ID, c.Set(ctx, p)
	}
	return c.Add(ctx, p)
}

// Replace overwrites an existing person.
func (r *PersonRepository) Replace(ctx context.Context, p models.Person) error {
	c, err := r.collection(p.Type)
	if err != nil {
		return err
	}
	return c.Replace(ctx, p)
}

// UpdateFields patches selected fields of a person.
func (r *PersonRepository) UpdateFields(ctx context.Context, t models.PersonType, id string, patch map[string]any) error {
	c, err := r.collection(t)
	if err != nil {
		return err
	}
	return c.Update(ctx, id, patch)
}

// Delete removes a person.
func (r *PersonRepository) Delete(ctx context.Context, t models.PersonType, id string) error {
	c, err := r.collection(t)
	if err != nil {
		return err
	}
	return c.Delete(ctx, id)
}

// Subscribe streams the collection of type t.
func (r *PersonRepository) Subscribe(ctx context.Context, t models.PersonType) (*Stream[models.Person], error) {
	c, err := r.collection(t)
	if err != nil {
		return nil, err
	}
	return c.Subscribe(ctx)
}

// withType fills the type of records written without one.
func withType(people []models.Person, t models.PersonType) []models.Person {
	for i := range people {
		people[i].Type = t
	}
	return people
}
