package handler

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/response"
)

type streamEntry struct {
	owner  string
	remove func(ctx context.Context, id string) error
}

// StreamRegistry tracks open list streams so that deletes issued by the same client run
// through the stream's controller and show up as optimistic updates.
type StreamRegistry struct {
	mu      sync.Mutex
	entries map[string]streamEntry
	logger  *zap.Logger
}

// NewStreamRegistry constructs an empty registry.
func NewStreamRegistry(logger *zap.Logger) *StreamRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamRegistry{entries: map[string]streamEntry{}, logger: logger}
}

func (r *StreamRegistry) register(owner string, remove func(ctx context.Context, id string) error) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = streamEntry{owner: owner, remove: remove}
	r.mu.Unlock()
	return id
}

func (r *StreamRegistry) unregister(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *StreamRegistry) lookup(id string) (streamEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Open reports the number of live streams.
func (r *StreamRegistry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DeleteItem godoc
// @Summary Delete an item through an open list stream
// @Description The item disappears from the stream at once and comes back with action_error if the delete fails.
// @Tags Streams
// @Produce json
// @Param streamId path string true "Stream ID from the open event"
// @Param id path string true "Item ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /streams/{streamId}/items/{id} [delete]
func (r *StreamRegistry) DeleteItem(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	entry, found := r.lookup(c.Param("streamId"))
	if !found {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "stream not found"))
		return
	}
	if entry.owner != session.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "stream belongs to another session"))
		return
	}
	if err := entry.remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// serveStream pushes list views as SSE events until the client goes away, then tears the
// screen down. The first event names the stream so the client can delete through it.
func serveStream[T models.Entity](c *gin.Context, registry *StreamRegistry, session models.Session, watch *service.ListWatch[T]) {
	defer watch.Close()
	streamID := registry.register(session.UserID, watch.Remove)
	defer registry.unregister(streamID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("open", gin.H{"stream_id": streamID})
	c.Writer.Flush()

	registry.logger.Debug("list stream opened", zap.String("stream_id", streamID), zap.String("user_id", session.UserID))
	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case view := <-watch.Views():
			c.SSEvent("view", view)
			return true
		}
	})
	registry.logger.Debug("list stream closed", zap.String("stream_id", streamID))
}
