package usersync

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-user-sync/queue"
)

// PublishService turns publisher calls into queued sync jobs. Delivery
// happens later on the queue, callers only ever see enqueue errors.
type PublishService struct {
	queue      queue.Queue
	dispatcher *Dispatcher
	queueName  string
	connection string
	tries      int
	backoff    time.Duration
	logger     Logger
}

var _ Publisher = (*PublishService)(nil)

// PublishOption configures a PublishService
type PublishOption func(*PublishService)

// WithQueueName sets the queue jobs are placed on
func WithQueueName(name string) PublishOption {
	return func(p *PublishService) {
		p.queueName = name
	}
}

// WithQueueConnection sets the queue connection name
func WithQueueConnection(name string) PublishOption {
	return func(p *PublishService) {
		p.connection = name
	}
}

// WithTries sets how many attempts each job gets
func WithTries(tries int) PublishOption {
	return func(p *PublishService) {
		if tries > 0 {
			p.tries = tries
		}
	}
}

// WithBackoff sets the delay between attempts
func WithBackoff(backoff time.Duration) PublishOption {
	return func(p *PublishService) {
		if backoff >= 0 {
			p.backoff = backoff
		}
	}
}

// WithPublishLogger sets the logger
func WithPublishLogger(logger Logger) PublishOption {
	return func(p *PublishService) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublishService returns a publisher enqueueing onto q
func NewPublishService(q queue.Queue, dispatcher *Dispatcher, opts ...PublishOption) *PublishService {
	p := &PublishService{
		queue:      q,
		dispatcher: dispatcher,
		queueName:  queue.DefaultQueue,
		connection: queue.DefaultConnection,
		tries:      queue.DefaultTries,
		backoff:    queue.DefaultBackoff,
		logger:     ResolveLogger("publisher", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// CreateUser hashes password when needed and creates the user on every
// active app. ownerEmail names a user whose teams the new user joins.
func (p *PublishService) CreateUser(ctx context.Context, email, name, password, role, ownerEmail string) error {
	hash, err := EnsureHashed(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to hash password").
			WithMetadata(map[string]any{"email": email})
	}

	return p.enqueue(ctx, CreateUserJob{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		OwnerEmail:   ownerEmail,
	})
}

// SyncUser pushes changed fields for the user known remotely as email
func (p *PublishService) SyncUser(ctx context.Context, email string, changes map[string]any) error {
	copied := make(map[string]any, len(changes))
	for k, v := range changes {
		copied[k] = v
	}
	if pw, ok := copied["password"].(string); ok {
		delete(copied, "password")
		hash, err := EnsureHashed(pw)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to hash password").
				WithMetadata(map[string]any{"email": email})
		}
		copied["password_hash"] = hash
	}

	return p.enqueue(ctx, SyncUserJob{
		Email:   email,
		Changes: copied,
	})
}

// SyncPassword sets the user's password on every active app
func (p *PublishService) SyncPassword(ctx context.Context, email, password string) error {
	hash, err := EnsureHashed(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to hash password").
			WithMetadata(map[string]any{"email": email})
	}

	return p.enqueue(ctx, SyncPasswordJob{
		Email:        email,
		PasswordHash: hash,
	})
}

// TeamOption customizes CreateTeam
type TeamOption func(*CreateTeamJob)

// WithTeamSlug overrides the slug derived from the team name
func WithTeamSlug(slug string) TeamOption {
	return func(j *CreateTeamJob) {
		if s := strings.TrimSpace(slug); s != "" {
			j.Slug = s
		}
	}
}

// WithTeamUserName sets the display name of the user attached to the team
func WithTeamUserName(name string) TeamOption {
	return func(j *CreateTeamJob) {
		j.UserName = name
	}
}

// CreateTeam creates a team on every active app, attaching userEmail
func (p *PublishService) CreateTeam(ctx context.Context, name, userEmail string, opts ...TeamOption) error {
	job := CreateTeamJob{
		Name:      name,
		Slug:      Slugify(name),
		UserEmail: userEmail,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&job)
		}
	}
	return p.enqueue(ctx, job)
}

// ToggleUserActive sets the active flag on the single app appKey
func (p *PublishService) ToggleUserActive(ctx context.Context, email string, active bool, appKey string) error {
	return p.enqueue(ctx, ToggleActiveJob{
		Email:    email,
		IsActive: active,
		AppKey:   appKey,
	})
}

func (p *PublishService) enqueue(ctx context.Context, job SyncJob) error {
	err := p.queue.Enqueue(ctx, p.dispatcher.Job(job),
		queue.OnQueue(p.queueName),
		queue.OnConnection(p.connection),
		queue.WithTries(p.tries),
		queue.WithBackoff(p.backoff),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to enqueue sync job").
			WithTextCode(TextCodeQueue).
			WithMetadata(map[string]any{
				"action": job.Action().String(),
				"email":  job.SubjectEmail(),
			})
	}

	p.logger.Debug("sync job queued",
		"action", job.Action().String(),
		"email", job.SubjectEmail(),
		"queue", p.queueName,
	)
	return nil
}
