package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const messageNotFound = "message not found"

type messageRepository interface {
	FetchByID(ctx context.Context, id string) (*models.Message, error)
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)
	Add(ctx context.Context, m models.Message) (string, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, conds ...docstore.Condition) (*repository.Stream[models.Message], error)
}

// MessageService stores direct messages between two users.
type MessageService struct {
	repo      messageRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMessageService constructs the message service.
func NewMessageService(repo messageRepository, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MessageService) listConfig(me, peer string) viewstate.ListConfig[models.Message] {
	return viewstate.ListConfig[models.Message]{
		Projector: viewstate.Projector[models.Message]{
			SearchFields: func(m models.Message) []string { return []string{m.Body} },
			Scope:        func(m models.Message) bool { return m.Between(me, peer) },
			Less:         func(a, b models.Message) bool { return a.SentAt.Before(b.SentAt) },
		},
		Fetch: func(ctx context.Context) ([]models.Message, error) { return s.repo.Conversation(ctx, me, peer) },
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.Message], error) {
			return s.repo.Subscribe(ctx)
		}),
		Delete: func(ctx context.Context, id string) error {
			m, err := s.repo.FetchByID(ctx, id)
			if err != nil {
				return err
			}
			if m.SenderID != me {
				return forbidden("only the sender can delete a message")
			}
			return s.repo.Delete(ctx, id)
		},
		Logger: s.logger,
	}
}

// Conversation returns the messages between the caller and peer, oldest first.
func (s *MessageService) Conversation(ctx context.Context, session models.Session, peer string, search string) ([]models.Message, error) {
	if strings.TrimSpace(peer) == "" {
		return nil, appErrors.Validation("invalid conversation", map[string]string{"peer": "is required"})
	}
	return fetchList(ctx, s.listConfig(session.UserID, peer), viewstate.Filter{Search: search}, messageNotFound)
}

// Watch opens the live conversation between the caller and peer.
func (s *MessageService) Watch(ctx context.Context, session models.Session, peer string) (*ListWatch[models.Message], error) {
	if strings.TrimSpace(peer) == "" {
		return nil, appErrors.Validation("invalid conversation", map[string]string{"peer": "is required"})
	}
	return watchList(ctx, s.listConfig(session.UserID, peer), viewstate.Filter{}, messageNotFound)
}

// Send stores a message from the caller.
func (s *MessageService) Send(ctx context.Context, session models.Session, in models.MessageInput) (*models.Message, error) {
	m, err := submitForm(ctx, s.logger, in, func(in models.MessageInput) (models.Message, error) {
		const message = "invalid message"
		if err := viewstate.Validate(s.validator, in, message); err != nil {
			return models.Message{}, err
		}
		receiver := strings.TrimSpace(in.ReceiverID)
		if receiver == session.UserID {
			return models.Message{}, appErrors.Validation(message, map[string]string{"receiver_id": "must not be yourself"})
		}
		return models.Message{
			SenderID:     session.UserID,
			ReceiverID:   receiver,
			Participants: models.ConversationKey(session.UserID, receiver),
			Body:         strings.TrimSpace(in.Body),
			SentAt:       s.now(),
		}, nil
	}, func(ctx context.Context, m models.Message) (models.Message, error) {
		id, err := s.repo.Add(ctx, m)
		m.ID = id
		return m, err
	}, messageNotFound)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead flags a received message as read.
func (s *MessageService) MarkRead(ctx context.Context, session models.Session, id string) error {
	m, err := s.repo.FetchByID(ctx, id)
	if err != nil {
		return gatewayError(err, messageNotFound)
	}
	if m.ReceiverID != session.UserID {
		return forbidden("only the receiver can mark a message read")
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return gatewayError(err, messageNotFound)
	}
	return nil
}
