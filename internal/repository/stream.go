package repository

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// Snapshot is a decoded full result set. Err is set when the re-query failed.
type Snapshot[T models.Entity] struct {
	Items []T
	Err   error
}

// Stream decodes subscription snapshots into entities. Undecodable documents are logged and skipped.
type Stream[T models.Entity] struct {
	sub     *docstore.Subscription
	name    string
	logger  *zap.Logger
	updates chan Snapshot[T]
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newStream[T models.Entity](sub *docstore.Subscription, name string, logger *zap.Logger) *Stream[T] {
	s := &Stream[T]{
		sub:     sub,
		name:    name,
		logger:  logger,
		updates: make(chan Snapshot[T]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Updates delivers decoded snapshots until the stream is closed.
func (s *Stream[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Close releases the underlying subscription and waits for delivery to stop.
// Nothing is delivered once Close returns. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.sub.Close()
	})
	<-s.done
}

func (s *Stream[T]) run() {
	defer close(s.done)
	defer close(s.updates)
	for snap := range s.sub.Updates() {
		out := Snapshot[T]{Err: snap.Err}
		if snap.Err == nil {
			out.Items = decodeDocuments[T](s.logger, s.name, snap.Documents)
		}
		select {
		case <-s.stop:
			return
		default:
		}
		select {
		case s.updates <- out:
		case <-s.stop:
			return
		}
	}
}
