package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/mentorhub/internal/models"
	"github.com/charlesng35/mentorhub/internal/notifications"
	"github.com/charlesng35/mentorhub/internal/realtime"
	"github.com/charlesng35/mentorhub/pkg/logger"
	"github.com/charlesng35/mentorhub/pkg/mail"
	"github.com/charlesng35/mentorhub/pkg/metrics"
)

const (
	defaultDispatchTimeout = 15 * time.Second
	emailPreviewRunes      = 300
)

// EmailDelivery sends a templated email envelope.
type EmailDelivery interface {
	Send(ctx context.Context, env notifications.Envelope) error
}

// NotificationDispatcher fans lifecycle events out to in-app notifications, the realtime
// mentorship stream and email. Delivery is asynchronous and failures are only logged.
type NotificationDispatcher struct {
	profiles *ProfileService
	inbox    *NotificationService
	email    EmailDelivery
	hub      *realtime.Hub
	baseURL  string
	timeout  time.Duration
	wg       sync.WaitGroup
}

// DispatcherOption customises the dispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithDispatchEmail enables email delivery.
func WithDispatchEmail(email EmailDelivery) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.email = email
	}
}

// WithDispatchHub enables realtime lifecycle broadcasts.
func WithDispatchHub(hub *realtime.Hub) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.hub = hub
	}
}

// WithDispatchBaseURL sets the public URL used to build links in notifications.
func WithDispatchBaseURL(baseURL string) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithDispatchTimeout bounds the time spent delivering one event.
func WithDispatchTimeout(timeout time.Duration) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewNotificationDispatcher constructs a dispatcher.
func NewNotificationDispatcher(profiles *ProfileService, inbox *NotificationService, opts ...DispatcherOption) (*NotificationDispatcher, error) {
	if profiles == nil {
		return nil, errors.New("notification dispatcher: profile service is required")
	}
	d := &NotificationDispatcher{
		profiles: profiles,
		inbox:    inbox,
		timeout:  defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch implements EventDispatcher. It returns immediately.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, event LifecycleEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				dispatchLogger().Error("notification dispatch panicked",
					zap.String("event", string(event.Kind)),
					zap.Any("panic", r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ensureContext(ctx)), d.timeout)
		defer cancel()
		d.deliver(ctx, event)
	}()
}

// Wait blocks until every dispatched event has been handled.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

type eventParties struct {
	mentor    Contact
	mentee    Contact
	recipient Contact
	sender    Contact
}

func (d *NotificationDispatcher) deliver(ctx context.Context, event LifecycleEvent) {
	log := dispatchLogger().With(
		zap.String("event", string(event.Kind)),
		zap.String("request_id", event.RequestID),
		zap.String("connection_id", event.ConnectionID),
	)

	parties, err := d.resolveParties(ctx, event)
	if err != nil {
		metrics.NotificationDispatches.WithLabelValues("resolve", "error").Inc()
		log.Warn("failed to resolve notification recipients", zap.Error(err))
		return
	}

	d.notifyInApp(ctx, log, event, parties)
	d.broadcastLifecycle(event, parties)
	d.sendEmail(ctx, log, event, parties)
}

func (d *NotificationDispatcher) resolveParties(ctx context.Context, event LifecycleEvent) (eventParties, error) {
	mentor, err := d.profiles.MentorContact(ctx, event.MentorID)
	if err != nil {
		return eventParties{}, fmt.Errorf("mentor contact: %w", err)
	}
	mentee, err := d.profiles.MenteeContact(ctx, event.MenteeID)
	if err != nil {
		return eventParties{}, fmt.Errorf("mentee contact: %w", err)
	}

	parties := eventParties{mentor: mentor, mentee: mentee}
	switch event.Kind {
	case EventRequestCreated:
		parties.recipient, parties.sender = mentor, mentee
	case EventRequestAccepted, EventRequestRejected:
		parties.recipient, parties.sender = mentee, mentor
	default:
		// Connection events go to whoever did not act.
		if event.ActorUserID == mentor.UserID {
			parties.recipient, parties.sender = mentee, mentor
		} else {
			parties.recipient, parties.sender = mentor, mentee
		}
	}
	return parties, nil
}

func (d *NotificationDispatcher) notifyInApp(ctx context.Context, log *zap.Logger, event LifecycleEvent, parties eventParties) {
	if d.inbox == nil {
		return
	}

	input := CreateNotificationInput{
		UserID:    parties.recipient.UserID,
		ActionURL: d.link(event),
		Metadata: map[string]any{
			"request_id":    event.RequestID,
			"connection_id": event.ConnectionID,
			"actor_user_id": event.ActorUserID,
		},
	}
	name := parties.sender.Name()
	switch event.Kind {
	case EventRequestCreated:
		input.Type = models.NotificationTypeRequestCreated
		input.Title = "New mentorship request"
		input.Message = fmt.Sprintf("%s sent you a mentorship request.", name)
	case EventRequestAccepted:
		input.Type = models.NotificationTypeRequestAccepted
		input.Title = "Request accepted"
		input.Message = fmt.Sprintf("%s accepted your mentorship request.", name)
		input.Severity = "success"
	case EventRequestRejected:
		input.Type = models.NotificationTypeRequestRejected
		input.Title = "Request declined"
		input.Message = fmt.Sprintf("%s declined your mentorship request.", name)
	case EventConnectionCompleted:
		input.Type = models.NotificationTypeConnectionCompleted
		input.Title = "Mentorship completed"
		input.Message = fmt.Sprintf("%s marked your mentorship as complete.", name)
		input.Severity = "success"
	case EventConnectionDetached:
		input.Type = models.NotificationTypeConnectionDetached
		input.Title = "Mentorship ended"
		input.Message = fmt.Sprintf("%s ended your mentorship connection.", name)
		input.Severity = "warning"
		if event.Reason != "" {
			input.Metadata["reason"] = event.Reason
		}
	default:
		return
	}

	if _, err := d.inbox.Create(ctx, input); err != nil {
		metrics.NotificationDispatches.WithLabelValues("in_app", "error").Inc()
		log.Warn("failed to create in-app notification", zap.Error(err))
		return
	}
	metrics.NotificationDispatches.WithLabelValues("in_app", "success").Inc()
}

func (d *NotificationDispatcher) broadcastLifecycle(event LifecycleEvent, parties eventParties) {
	if d.hub == nil {
		return
	}
	d.hub.BroadcastToUsers(realtime.StreamMentorship, []string{parties.mentor.UserID, parties.mentee.UserID}, realtime.Message{
		Event: string(event.Kind),
		Data: map[string]any{
			"request_id":    event.RequestID,
			"connection_id": event.ConnectionID,
			"mentor_id":     event.MentorID,
			"mentee_id":     event.MenteeID,
			"occurred_at":   event.OccurredAt,
		},
	})
	metrics.NotificationDispatches.WithLabelValues("realtime", "success").Inc()
}

func (d *NotificationDispatcher) sendEmail(ctx context.Context, log *zap.Logger, event LifecycleEvent, parties eventParties) {
	if d.email == nil || parties.recipient.Email == "" {
		return
	}
	if !d.profiles.EmailEnabled(ctx, parties.recipient.UserID) {
		metrics.NotificationDispatches.WithLabelValues("email", "opted_out").Inc()
		return
	}

	env := notifications.Envelope{
		ToAddress: parties.recipient.Email,
		Payload: notifications.Payload{
			RecipientName:   parties.recipient.Name(),
			CounterpartName: parties.sender.Name(),
			ActionURL:       d.link(event),
		},
	}
	switch event.Kind {
	case EventRequestCreated:
		env.Template = notifications.TemplateRequestCreated
		env.Payload.MessagePreview = truncateRunes(event.Message, emailPreviewRunes)
	case EventRequestAccepted:
		env.Template = notifications.TemplateRequestAccepted
		env.Payload.ContactEmail = parties.mentor.Email
	case EventRequestRejected:
		env.Template = notifications.TemplateRequestRejected
	case EventConnectionCompleted:
		env.Template = notifications.TemplateConnectionCompleted
	case EventConnectionDetached:
		env.Template = notifications.TemplateConnectionDetached
		env.Payload.Reason = event.Reason
	default:
		return
	}

	if err := d.email.Send(ctx, env); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			metrics.NotificationDispatches.WithLabelValues("email", "disabled").Inc()
			return
		}
		metrics.NotificationDispatches.WithLabelValues("email", "error").Inc()
		log.Warn("failed to send lifecycle email", zap.String("template", string(env.Template)), zap.Error(err))
		return
	}
	metrics.NotificationDispatches.WithLabelValues("email", "success").Inc()
}

func (d *NotificationDispatcher) link(event LifecycleEvent) string {
	if d.baseURL == "" {
		return ""
	}
	switch event.Kind {
	case EventRequestCreated:
		return d.baseURL + "/requests/incoming"
	case EventRequestRejected:
		return d.baseURL + "/mentors"
	default:
		return d.baseURL + "/connections"
	}
}

func dispatchLogger() *zap.Logger {
	return logger.WithModule("notifications")
}
