package usersync

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-user-sync/queue"
)

// Dispatcher delivers sync jobs to their target apps. One Execute call is
// one attempt: every target is tried in name order, each outcome is
// audited, and transport failures are returned together so the queue can
// retry the whole job.
type Dispatcher struct {
	registry *AppRegistry
	client   *DeliveryClient
	audit    *SyncLogger
	events   EventSink
	logger   Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithDispatcherEvents sets the sink for synced and failed events
func WithDispatcherEvents(sink EventSink) DispatcherOption {
	return func(d *Dispatcher) {
		d.events = normalizeEventSink(sink)
	}
}

// WithDispatcherAudit sets the audit logger
func WithDispatcherAudit(audit *SyncLogger) DispatcherOption {
	return func(d *Dispatcher) {
		d.audit = audit
	}
}

// WithDispatcherLogger sets the logger
func WithDispatcherLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher sending through client
func NewDispatcher(registry *AppRegistry, client *DeliveryClient, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		client:   client,
		events:   noopEventSink{},
		logger:   ResolveLogger("dispatcher", nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Job binds a sync job to the dispatcher so a queue can run it
func (d *Dispatcher) Job(job SyncJob) queue.Job {
	return &dispatchJob{job: job, dispatcher: d}
}

type dispatchJob struct {
	job        SyncJob
	dispatcher *Dispatcher
}

func (j *dispatchJob) Type() string {
	return "usersync." + j.job.Action().String()
}

func (j *dispatchJob) Handle(ctx context.Context) error {
	return j.dispatcher.Execute(ctx, j.job)
}

// Execute runs one attempt of job
func (d *Dispatcher) Execute(ctx context.Context, job SyncJob) error {
	attempt := queue.Attempt(ctx)
	targets, ok := d.targets(ctx, job)
	if !ok {
		return nil
	}

	if len(targets) == 0 {
		d.logger.Warn("no active sync apps", "action", job.Action().String(), "email", job.SubjectEmail())
		return nil
	}

	var transportErrs []error
	for _, name := range SortedNames(targets) {
		if err := d.deliver(ctx, job, targets[name], attempt); err != nil {
			transportErrs = append(transportErrs, err)
		}
	}

	if len(transportErrs) == 0 {
		return nil
	}

	return goerrors.WrapRetryable(errors.Join(transportErrs...), goerrors.CategoryExternal, "sync delivery failed").
		WithTextCode(TextCodeTransport).
		WithMetadata(map[string]any{
			"action":  job.Action().String(),
			"email":   job.SubjectEmail(),
			"attempt": attempt,
			"failed":  len(transportErrs),
		})
}

func (d *Dispatcher) targets(ctx context.Context, job SyncJob) (map[string]TargetApp, bool) {
	if job.Action().Broadcast() {
		return d.registry.ListActiveApps(ctx), true
	}

	name := job.TargetAppName()
	app, found := d.registry.GetApp(ctx, name)
	if !found {
		d.logger.Warn("sync app not found, skipping",
			"action", job.Action().String(),
			"app", name,
			"email", job.SubjectEmail(),
		)
		return nil, false
	}
	return map[string]TargetApp{app.Name: app}, true
}

// deliver returns an error only for transport failures
func (d *Dispatcher) deliver(ctx context.Context, job SyncJob, app TargetApp, attempt int) error {
	action := job.Action()
	call := d.client.Client(app)
	body := job.Body(ctx, call, d.logger)
	payload := AuditPayload(body)

	d.logger.Debug("sending sync request",
		"action", action.String(),
		"app", app.Name,
		"attempt", attempt,
		"payload", print.MaybePrettyJSON(payload),
	)

	res, err := call.PostJSON(ctx, action.Path(), body)
	if err != nil {
		d.logger.Error("sync request failed",
			"action", action.String(),
			"app", app.Name,
			"email", job.SubjectEmail(),
			"attempt", attempt,
			"error", err,
		)
		d.record(ctx, OutboundEntry{
			Action:    action,
			TargetApp: app.Name,
			Email:     job.SubjectEmail(),
			Payload:   payload,
			Status:    StatusFailed,
			Error:     err.Error(),
			Attempt:   attempt,
		})
		if IsTransportError(err) {
			return err
		}
		return nil
	}

	if res.OK() {
		d.record(ctx, OutboundEntry{
			Action:     action,
			TargetApp:  app.Name,
			Email:      job.SubjectEmail(),
			Payload:    payload,
			Status:     StatusSuccess,
			HTTPStatus: res.StatusCode,
			Attempt:    attempt,
		})
		EmitEvent(ctx, d.events, d.logger, Event{
			Type:       job.SuccessEvent(),
			Action:     action,
			Direction:  DirectionOutbound,
			Email:      job.SubjectEmail(),
			AppName:    app.Name,
			Payload:    payload,
			HTTPStatus: res.StatusCode,
		})
		d.logger.Info("sync delivered", "action", action.String(), "app", app.Name, "email", job.SubjectEmail())
		return nil
	}

	d.logger.Warn("sync rejected by app",
		"action", action.String(),
		"app", app.Name,
		"email", job.SubjectEmail(),
		"status", res.StatusCode,
	)
	d.record(ctx, OutboundEntry{
		Action:     action,
		TargetApp:  app.Name,
		Email:      job.SubjectEmail(),
		Payload:    payload,
		Status:     StatusFailed,
		HTTPStatus: res.StatusCode,
		Error:      res.Text(),
		Attempt:    attempt,
	})
	EmitEvent(ctx, d.events, d.logger, Event{
		Type:       EventSyncFailed,
		Action:     action,
		Direction:  DirectionOutbound,
		Email:      job.SubjectEmail(),
		AppName:    app.Name,
		Payload:    payload,
		ErrorBody:  res.Text(),
		HTTPStatus: res.StatusCode,
	})
	return nil
}

func (d *Dispatcher) record(ctx context.Context, entry OutboundEntry) {
	if err := d.audit.LogOutbound(ctx, entry); err != nil {
		d.logger.Warn("sync audit write failed", "action", entry.Action.String(), "app", entry.TargetApp, "error", err)
	}
}
