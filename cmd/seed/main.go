// Command seed fills a document store with a sample school: students for each class,
// a few teachers and staff, and one login account per person plus an admin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/config"
	"github.com/ecorvi/schmng-api/pkg/database"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	"github.com/ecorvi/schmng-api/pkg/logger"
)

const adminID = "seed-admin"

func main() {
	var (
		classes  int
		perClass int
		password string
		seed     int64
	)
	flag.IntVar(&classes, "classes", 2, "Number of classes")
	flag.IntVar(&perClass, "per-class", 15, "Students per class")
	flag.StringVar(&password, "password", "password123", "Password for every seeded account")
	flag.Int64Var(&seed, "seed", 1, "Random seed for phone numbers and birth dates")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gw, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to open document store", "backend", cfg.Store.Backend, "error", err)
	}
	defer closeStore()

	school := generate(classes, perClass, rand.New(rand.NewSource(seed)), time.Now())
	s := seeder{
		people: repository.NewPersonRepository(gw),
		users:  repository.NewUserRepository(gw),
		logger: logr,
		now:    time.Now,
	}
	if err := s.run(ctx, school, password); err != nil {
		logr.Sugar().Fatalw("seed failed", "error", err)
	}
	logr.Sugar().Infow("seed complete",
		"students", len(school.Students),
		"teachers", len(school.Teachers),
		"staff", len(school.Staff),
		"admin", "admin@example.com",
	)
}

type seeder struct {
	people *repository.PersonRepository
	users  *repository.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// run upserts every profile with a matching account keyed by the same id.
func (s seeder) run(ctx context.Context, r roster, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	admin := models.User{ID: adminID, Email: "admin@example.com", PasswordHash: string(hash), FullName: "School Admin", Role: models.RoleAdmin, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := s.users.Set(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	groups := []struct {
		role   models.UserRole
		people []models.Person
	}{
		{models.RoleStudent, r.Students},
		{models.RoleTeacher, r.Teachers},
		{models.RoleStaff, r.Staff},
	}
	for _, g := range groups {
		for _, p := range g.people {
			if _, err := s.people.Create(ctx, p); err != nil {
				return fmt.Errorf("seed %s %s: %w", p.Type, p.ID, err)
			}
			user := models.User{
				ID:           p.ID,
				Email:        strings.ToLower(p.Email),
				PasswordHash: string(hash),
				FullName:     p.FullName(),
				Role:         g.role,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.users.Set(ctx, user); err != nil {
				return fmt.Errorf("seed account %s: %w", p.ID, err)
			}
			s.logger.Debug("seeded", zap.String("type", string(p.Type)), zap.String("name", p.FullName()))
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Gateway, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := docstore.NewPostgres(db, docstore.PostgresOptions{Notify: true})
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil
	case config.StoreBackendBolt:
		b, err := docstore.OpenBolt(cfg.Store.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("seeding needs a persistent store, got %q", cfg.Store.Backend)
	}
}
