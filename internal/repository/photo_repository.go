package repository

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/ecorvi/schmng-api/internal/models"
)

type fileStore interface {
	SaveLimited(name string, r io.Reader, limit int64) (string, int64, error)
	Delete(name string) error
}

// PhotoRepository stores profile photos on disk and records their path on the person.
type PhotoRepository struct {
	files  fileStore
	people *PersonRepository
	limit  int64
}

// NewPhotoRepository constructs a photo repository with a per-file byte limit.
func NewPhotoRepository(files fileStore, people *PersonRepository, limit int64) *PhotoRepository {
	return &PhotoRepository{files: files, people: people, limit: limit}
}

// Save writes the photo and links it to the person. The file is removed again when the
// person record cannot be updated.
func (r *PhotoRepository) Save(ctx context.Context, t models.PersonType, id, ext string, body io.Reader) (string, error) {
	name := path.Join("photos", t.Collection(), id+ext)
	stored, _, err := r.files.SaveLimited(name, body, r.limit)
	if err != nil {
		return "", fmt.Errorf("save photo %s: %w", id, err)
	}
	if err := r.people.UpdateFields(ctx, t, id, map[string]any{"profile_photo": stored}); err != nil {
		_ = r.files.Delete(stored)
		return "", err
	}
	return stored, nil
}
