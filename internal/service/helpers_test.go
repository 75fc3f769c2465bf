package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

var (
	adminSession   = models.Session{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin, Name: "Ada Admin"}
	teacherSession = models.Session{UserID: "teacher-1", Email: "teacher@example.com", Role: models.RoleTeacher, Name: "Tom Teacher"}
	staffSession   = models.Session{UserID: "staff-1", Email: "staff@example.com", Role: models.RoleStaff, Name: "Sam Staff"}
	studentSession = models.Session{UserID: "student-1", Email: "class1.student01@example.com", Role: models.RoleStudent, Name: "Clss1_Std01"}
)

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Invalidate(context.Context) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func requireCode(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, code, appErr.Code, "message: %s", appErr.Message)
	return appErr
}

// nextView waits for a view matching pred.
func nextView[T models.Entity](t *testing.T, w *ListWatch[T], pred func(ListView[T]) bool) ListView[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-w.Views():
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for view")
		}
	}
}
