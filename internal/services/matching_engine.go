package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/mentorhub/internal/models"
	apperrors "github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/logger"
	"github.com/charlesng35/mentorhub/pkg/metrics"
	"github.com/charlesng35/mentorhub/pkg/validator"
)

const tracerName = "github.com/charlesng35/mentorhub/internal/services"

// MatchingLimits bounds free-text input accepted by the engine, counted in runes after trimming.
type MatchingLimits struct {
	MessageMin int
	MessageMax int
	ReasonMax  int
}

// DefaultMatchingLimits returns the standard message and reason bounds.
func DefaultMatchingLimits() MatchingLimits {
	return MatchingLimits{MessageMin: 10, MessageMax: 2000, ReasonMax: 500}
}

// CreateRequestInput carries a mentee's request to a mentor.
type CreateRequestInput struct {
	MentorID string
	Message  string
}

// MatchingEngine orchestrates the request and connection lifecycles. Cross-entity writes run
// in one transaction and lifecycle events are dispatched only after commit.
type MatchingEngine struct {
	db          *gorm.DB
	profiles    *ProfileService
	requests    RequestLifecycle
	connections ConnectionLifecycle
	events      EventDispatcher
	locks       *keyedMutex
	limits      MatchingLimits
	tracer      trace.Tracer
	timeNow     func() time.Time
}

// MatchingOption customises engine dependencies.
type MatchingOption func(*MatchingEngine)

// WithEventDispatcher wires the receiver of post-commit lifecycle events.
func WithEventDispatcher(dispatcher EventDispatcher) MatchingOption {
	return func(e *MatchingEngine) {
		e.events = dispatcher
	}
}

// WithMatchingClock overrides the clock used for timestamps (test helper).
func WithMatchingClock(clock func() time.Time) MatchingOption {
	return func(e *MatchingEngine) {
		if clock != nil {
			e.timeNow = clock
		}
	}
}

// WithMatchingLimits overrides the default input bounds. Non-positive fields keep their default.
func WithMatchingLimits(limits MatchingLimits) MatchingOption {
	return func(e *MatchingEngine) {
		if limits.MessageMin > 0 {
			e.limits.MessageMin = limits.MessageMin
		}
		if limits.MessageMax > 0 {
			e.limits.MessageMax = limits.MessageMax
		}
		if limits.ReasonMax > 0 {
			e.limits.ReasonMax = limits.ReasonMax
		}
	}
}

// WithTracer overrides the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) MatchingOption {
	return func(e *MatchingEngine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewMatchingEngine constructs the engine once dependencies are supplied.
func NewMatchingEngine(db *gorm.DB, profiles *ProfileService, opts ...MatchingOption) (*MatchingEngine, error) {
	if db == nil {
		return nil, errors.New("matching engine: db is required")
	}
	if profiles == nil {
		return nil, errors.New("matching engine: profile service is required")
	}

	engine := &MatchingEngine{
		db:       db,
		profiles: profiles,
		locks:    newKeyedMutex(),
		limits:   DefaultMatchingLimits(),
		tracer:   otel.Tracer(tracerName),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}

	engine.requests = NewRequestLifecycle(engine.timeNow)
	engine.connections = NewConnectionLifecycle(engine.timeNow)
	return engine, nil
}

// CreateRequest records a mentee's request to a mentor in SENT.
func (e *MatchingEngine) CreateRequest(ctx context.Context, userID string, input CreateRequestInput) (dto *RequestDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.CreateRequest", attribute.String("mentorhub.mentor_id", input.MentorID))
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentee() {
		return nil, ErrMenteeRoleRequired
	}

	message, err := e.normaliseMessage(input.Message)
	if err != nil {
		return nil, err
	}
	mentorID := strings.TrimSpace(input.MentorID)
	if mentorID == "" {
		return nil, ErrMentorNotFound
	}

	release := e.locks.Lock(mentorID)
	defer release()

	var created *models.MentorshipRequest
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mentor, err := lockMentor(tx, mentorID)
		if err != nil {
			return err
		}
		if !mentor.AcceptsRequests {
			return ErrMentorNotAccepting
		}

		active, err := e.connections.CountActive(tx, mentor.ID)
		if err != nil {
			return err
		}
		if !CanAdmit(active, mentor.MaxMentees) {
			metrics.CapacityRejections.WithLabelValues("create").Inc()
			return ErrCapacityExceeded
		}

		pending, err := e.requests.HasPending(tx, caller.MenteeProfileID, mentor.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateRequest
		}

		created, err = e.requests.Create(tx, caller.MenteeProfileID, mentor.ID, message)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestTransitions.WithLabelValues("created").Inc()
	logger.WithModule("matching").Info("mentorship request created",
		zap.String("request_id", created.ID),
		zap.String("mentor_id", created.MentorID),
		zap.String("mentee_id", created.MenteeID),
	)
	e.emit(ctx, LifecycleEvent{
		Kind:        EventRequestCreated,
		RequestID:   created.ID,
		MentorID:    created.MentorID,
		MenteeID:    created.MenteeID,
		ActorUserID: caller.UserID,
		Message:     created.Message,
		OccurredAt:  created.CreatedAt,
	})

	out := mapRequest(*created)
	return &out, nil
}

// ListIncoming returns the requests addressed to the calling mentor, newest first.
func (e *MatchingEngine) ListIncoming(ctx context.Context, userID string) (items []RequestDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.ListIncoming")
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentor() {
		return nil, ErrMentorRoleRequired
	}

	db := e.db.WithContext(ctx)
	rows, err := e.requests.ListForMentor(db, caller.MentorProfileID)
	if err != nil {
		return nil, err
	}
	return e.mapRequestRows(db, rows)
}

// ListOutgoing returns the requests sent by the calling mentee, newest first.
func (e *MatchingEngine) ListOutgoing(ctx context.Context, userID string) (items []RequestDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.ListOutgoing")
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentee() {
		return nil, ErrMenteeRoleRequired
	}

	db := e.db.WithContext(ctx)
	rows, err := e.requests.ListForMentee(db, caller.MenteeProfileID)
	if err != nil {
		return nil, err
	}
	return e.mapRequestRows(db, rows)
}

// AcceptRequest accepts a SENT request and activates the pair's connection. Accepting an
// already ACCEPTED or COMPLETED request returns the current state without side effects.
func (e *MatchingEngine) AcceptRequest(ctx context.Context, userID, requestID string) (result *AcceptResult, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.AcceptRequest", attribute.String("mentorhub.request_id", requestID))
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentor() {
		return nil, ErrMentorRoleRequired
	}

	release := e.locks.Lock(caller.MentorProfileID)
	defer release()

	var (
		request     *models.MentorshipRequest
		connection  *models.MentorshipConnection
		changed     bool
		reactivated bool
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = e.requests.LoadForMentor(tx, requestID, caller.MentorProfileID, true)
		if err != nil {
			return err
		}

		switch request.Status {
		case models.RequestStatusRejected:
			return ErrAlreadyProcessed
		case models.RequestStatusAccepted, models.RequestStatusCompleted:
			connection, err = e.connections.FindByPair(tx, request.MentorID, request.MenteeID)
			return err
		}

		mentor, err := lockMentor(tx, caller.MentorProfileID)
		if err != nil {
			return err
		}

		existing, err := e.connections.FindByPair(tx, request.MentorID, request.MenteeID)
		if err != nil {
			return err
		}
		// A pair already holding a slot does not take a second one.
		if existing == nil || !existing.CountsTowardCapacity() {
			active, err := e.connections.CountActive(tx, mentor.ID)
			if err != nil {
				return err
			}
			if !CanAdmit(active, mentor.MaxMentees) {
				metrics.CapacityRejections.WithLabelValues("accept").Inc()
				return ErrCapacityExceeded
			}
		}

		if err := e.requests.Transition(tx, request, models.RequestStatusAccepted); err != nil {
			return err
		}
		connection, err = e.connections.Activate(tx, request)
		if err != nil {
			return err
		}

		changed = true
		reactivated = existing != nil
		if connection.CountsTowardCapacity() && (existing == nil || !existing.CountsTowardCapacity()) {
			metrics.ActiveMentorships.Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if connection != nil {
		if err := e.db.WithContext(ctx).Preload("Mentor.User").Preload("Mentee.User").
			Take(connection, "id = ?", connection.ID).Error; err != nil {
			return nil, fmt.Errorf("matching engine: load accepted connection: %w", err)
		}
	}

	result = &AcceptResult{Request: mapRequest(*request)}
	if connection != nil {
		dto := mapConnection(*connection, caller)
		result.Connection = &dto
		result.MenteeContact = dto.Contact
		if connection.RequestID == request.ID {
			result.Request.CompletedAt = connection.CompletedAt
		}
	}

	if !changed {
		return result, nil
	}

	metrics.RequestTransitions.WithLabelValues("accepted").Inc()
	if reactivated {
		metrics.ConnectionTransitions.WithLabelValues("reactivated").Inc()
	} else {
		metrics.ConnectionTransitions.WithLabelValues("activated").Inc()
	}
	logger.WithModule("matching").Info("mentorship request accepted",
		zap.String("request_id", request.ID),
		zap.String("connection_id", connection.ID),
		zap.Bool("reactivated", reactivated),
	)
	e.emit(ctx, LifecycleEvent{
		Kind:         EventRequestAccepted,
		RequestID:    request.ID,
		ConnectionID: connection.ID,
		MentorID:     request.MentorID,
		MenteeID:     request.MenteeID,
		ActorUserID:  caller.UserID,
		OccurredAt:   request.UpdatedAt,
	})
	return result, nil
}

// RejectRequest rejects a SENT request. Requests in any other state are returned unchanged.
func (e *MatchingEngine) RejectRequest(ctx context.Context, userID, requestID string) (dto *RequestDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.RejectRequest", attribute.String("mentorhub.request_id", requestID))
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !caller.IsMentor() {
		return nil, ErrMentorRoleRequired
	}

	var (
		request  *models.MentorshipRequest
		rejected bool
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = e.requests.LoadForMentor(tx, requestID, caller.MentorProfileID, true)
		if err != nil {
			return err
		}
		if request.Status != models.RequestStatusSent {
			return nil
		}
		if err := e.requests.Transition(tx, request, models.RequestStatusRejected); err != nil {
			return err
		}
		rejected = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := mapRequest(*request)
	if !rejected {
		return &out, nil
	}

	metrics.RequestTransitions.WithLabelValues("rejected").Inc()
	logger.WithModule("matching").Info("mentorship request rejected", zap.String("request_id", request.ID))
	e.emit(ctx, LifecycleEvent{
		Kind:        EventRequestRejected,
		RequestID:   request.ID,
		MentorID:    request.MentorID,
		MenteeID:    request.MenteeID,
		ActorUserID: caller.UserID,
		OccurredAt:  request.UpdatedAt,
	})
	return &out, nil
}

// ListConnections returns every connection the caller takes part in, newest first.
func (e *MatchingEngine) ListConnections(ctx context.Context, userID string) (items []ConnectionDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.ListConnections")
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := e.connections.ListForParticipant(e.db.WithContext(ctx), caller)
	if err != nil {
		return nil, err
	}

	items = make([]ConnectionDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapConnection(row, caller))
	}
	return items, nil
}

// CompleteConnection marks an active connection complete and mirrors its request to COMPLETED
// in the same transaction.
func (e *MatchingEngine) CompleteConnection(ctx context.Context, userID, connectionID string) (dto *ConnectionDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.CompleteConnection", attribute.String("mentorhub.connection_id", connectionID))
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	var conn *models.MentorshipConnection
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conn, err = e.connections.LoadForParticipant(tx, connectionID, caller, true)
		if err != nil {
			return err
		}
		if err := e.connections.Complete(tx, conn); err != nil {
			return err
		}
		return e.requests.MarkCompleted(tx, conn.RequestID)
	})
	if err != nil {
		return nil, err
	}

	metrics.ConnectionTransitions.WithLabelValues("completed").Inc()
	metrics.RequestTransitions.WithLabelValues("completed").Inc()
	metrics.ActiveMentorships.Dec()
	logger.WithModule("matching").Info("mentorship connection completed",
		zap.String("connection_id", conn.ID),
		zap.String("actor_user_id", caller.UserID),
	)
	e.emit(ctx, LifecycleEvent{
		Kind:         EventConnectionCompleted,
		RequestID:    conn.RequestID,
		ConnectionID: conn.ID,
		MentorID:     conn.MentorID,
		MenteeID:     conn.MenteeID,
		ActorUserID:  caller.UserID,
		OccurredAt:   *conn.CompletedAt,
	})

	return e.loadConnectionView(ctx, conn.ID, caller)
}

// DetachConnection ends an active connection from either side, keeping any completion stamp.
func (e *MatchingEngine) DetachConnection(ctx context.Context, userID, connectionID string, reason *string) (dto *ConnectionDTO, err error) {
	ctx, span := e.startSpan(ensureContext(ctx), "matching.DetachConnection", attribute.String("mentorhub.connection_id", connectionID))
	defer func() { finishSpan(span, err) }()

	caller, err := e.profiles.ResolveParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	reason = normaliseReason(reason)
	if reason != nil && validator.TrimmedLength(*reason) > e.limits.ReasonMax {
		return nil, ErrInvalidReason.WithMessage(fmt.Sprintf("Reason must be at most %d characters", e.limits.ReasonMax))
	}

	var (
		conn      *models.MentorshipConnection
		wasActive bool
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conn, err = e.connections.LoadForParticipant(tx, connectionID, caller, true)
		if err != nil {
			return err
		}
		wasActive = conn.CountsTowardCapacity()
		return e.connections.Detach(tx, conn, reason)
	})
	if err != nil {
		return nil, err
	}

	metrics.ConnectionTransitions.WithLabelValues("detached").Inc()
	if wasActive {
		metrics.ActiveMentorships.Dec()
	}
	logger.WithModule("matching").Info("mentorship connection detached",
		zap.String("connection_id", conn.ID),
		zap.String("actor_user_id", caller.UserID),
		zap.Bool("completed", conn.IsCompleted()),
	)
	event := LifecycleEvent{
		Kind:         EventConnectionDetached,
		RequestID:    conn.RequestID,
		ConnectionID: conn.ID,
		MentorID:     conn.MentorID,
		MenteeID:     conn.MenteeID,
		ActorUserID:  caller.UserID,
		OccurredAt:   *conn.DetachedAt,
	}
	if reason != nil {
		event.Reason = *reason
	}
	e.emit(ctx, event)

	return e.loadConnectionView(ctx, conn.ID, caller)
}

func (e *MatchingEngine) normaliseMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	length := validator.TrimmedLength(trimmed)
	if length < e.limits.MessageMin || length > e.limits.MessageMax {
		return "", ErrInvalidMessage.WithMessage(fmt.Sprintf(
			"Message must be between %d and %d characters", e.limits.MessageMin, e.limits.MessageMax,
		))
	}
	return trimmed, nil
}

func (e *MatchingEngine) mapRequestRows(db *gorm.DB, rows []models.MentorshipRequest) ([]RequestDTO, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Status == models.RequestStatusAccepted || row.Status == models.RequestStatusCompleted {
			ids = append(ids, row.ID)
		}
	}
	completions, err := e.connections.CompletionByRequest(db, ids)
	if err != nil {
		return nil, err
	}

	items := make([]RequestDTO, 0, len(rows))
	for _, row := range rows {
		dto := mapRequest(row)
		dto.CompletedAt = completions[row.ID]
		items = append(items, dto)
	}
	return items, nil
}

func (e *MatchingEngine) loadConnectionView(ctx context.Context, connectionID string, caller Participant) (*ConnectionDTO, error) {
	var row models.MentorshipConnection
	if err := e.db.WithContext(ctx).
		Preload("Mentor.User").
		Preload("Mentee.User").
		Take(&row, "id = ?", connectionID).Error; err != nil {
		return nil, fmt.Errorf("matching engine: load connection: %w", err)
	}
	dto := mapConnection(row, caller)
	return &dto, nil
}

// emit hands the event to the dispatcher detached from request cancellation.
func (e *MatchingEngine) emit(ctx context.Context, event LifecycleEvent) {
	if e.events == nil {
		return
	}
	e.events.Dispatch(context.WithoutCancel(ctx), event)
}

func (e *MatchingEngine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !apperrors.IsClientError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// lockMentor loads the mentor profile holding a row lock for the rest of the transaction.
func lockMentor(tx *gorm.DB, mentorID string) (*models.MentorProfile, error) {
	var mentor models.MentorProfile
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&mentor, "id = ?", mentorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMentorNotFound
		}
		return nil, fmt.Errorf("matching engine: load mentor: %w", err)
	}
	return &mentor, nil
}
