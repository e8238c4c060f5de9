// internal/domain/collaborators.go
package domain

import (
	"context"
	"fmt"
)

// Survey is the dispatcher's view of a survey owned by the surveys module.
type Survey struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Questions []string `json:"questions,omitempty"`
}

// SurveyDirectory looks up surveys in the surveys module. Get must return
// ErrSurveyNotFound when the ID is unknown.
type SurveyDirectory interface {
	Get(ctx context.Context, surveyID string) (*Survey, error)
}

// SurveyDelivery delivers one survey to one recipient.
type SurveyDelivery interface {
	Deliver(ctx context.Context, surveyID, recipientID string) error
}

// FeedCreateRequest is the validated title/message pair the feeds module accepts.
type FeedCreateRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Validate checks the feed request fields.
func (r *FeedCreateRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("feed title cannot be blank")
	}
	if r.Message == "" {
		return fmt.Errorf("feed message cannot be blank")
	}
	return nil
}

// FeedCreator is the feeds module's create-feed capability.
type FeedCreator interface {
	CreateFeed(ctx context.Context, req FeedCreateRequest) error
}

// AudienceDirectory resolves an audience filter to the member IDs it matches.
type AudienceDirectory interface {
	Resolve(ctx context.Context, filter string) ([]string, error)
}

// Notifier sends one message to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipientID, message string) error
}

// Notification is a single queued delivery.
type Notification struct {
	RecipientID string
	Message     string
}

// DeliveryQueue accepts notifications for asynchronous delivery. Enqueue must not
// block; a full queue returns ErrQueueFull.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, n Notification) error
}
