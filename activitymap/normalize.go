package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-tasks/auth"
)

const (
	ChannelAuth  = "auth"
	ChannelTasks = "tasks"

	ObjectTypeUser = "user"
	ObjectTypeTask = "task"

	// MetadataKeyFrom stores the previous value of a transition
	MetadataKeyFrom = "from"
	// MetadataKeyTo stores the new value of a transition
	MetadataKeyTo = "to"
)

const defaultActorID = "anonymous"

// Normalized is a transport agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Channel and object type are derived from the event type prefix.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	channel, objectType := classify(event.EventType)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.ActorID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(event.SubjectID),
		Channel:    channel,
		Metadata:   cloneMap(event.Metadata),
		OccurredAt: occurredAt,
	}
}

// WithActorFallback sets the actor id used when the event has none,
// as with failed logins for unknown emails.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if id := strings.TrimSpace(actorID); id != "" {
			opts.actorFallback = id
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// LoggerSink normalizes every event and writes it to the logger at
// info level.
func LoggerSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = auth.NewLogger("activity")
	}
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		out := Normalize(event, opts...)
		args := []any{
			"verb", out.Verb,
			"channel", out.Channel,
			"actor_id", out.ActorID,
			"object_type", out.ObjectType,
			"object_id", out.ObjectID,
			"occurred_at", out.OccurredAt.Format(time.RFC3339),
		}
		for k, v := range out.Metadata {
			args = append(args, k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}

func classify(eventType auth.ActivityEventType) (channel, objectType string) {
	if strings.HasPrefix(string(eventType), "task.") {
		return ChannelTasks, ObjectTypeTask
	}
	return ChannelAuth, ObjectTypeUser
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
