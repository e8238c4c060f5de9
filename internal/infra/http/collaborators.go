// internal/infra/http/collaborators.go
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"rtm-dispatcher/internal/domain"
)

// SurveyClient talks to the surveys module.
type SurveyClient struct {
	client
	logger *slog.Logger
}

// NewSurveyClient creates a surveys-module client rooted at baseURL.
func NewSurveyClient(baseURL string, maxRetries int, backoff time.Duration, logger *slog.Logger) *SurveyClient {
	return &SurveyClient{
		client: newClient(baseURL, maxRetries, backoff),
		logger: logger.With("component", "survey-client"),
	}
}

// Get looks up a survey by ID.
func (c *SurveyClient) Get(ctx context.Context, surveyID string) (*domain.Survey, error) {
	var survey domain.Survey
	err := c.doJSON(ctx, http.MethodGet, "/surveys/"+url.PathEscape(surveyID), nil, &survey)
	if errors.Is(err, errNotFound) {
		return nil, domain.ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("surveys module: %w", err)
	}
	return &survey, nil
}

// Deliver asks the surveys module to deliver one survey to one recipient.
func (c *SurveyClient) Deliver(ctx context.Context, surveyID, recipientID string) error {
	body := map[string]string{"recipient_id": recipientID}
	path := "/surveys/" + url.PathEscape(surveyID) + "/deliveries"
	if err := c.doJSON(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("surveys module: %w", err)
	}
	return nil
}

// FeedClient talks to the feeds module.
type FeedClient struct {
	client
	logger *slog.Logger
}

// NewFeedClient creates a feeds-module client rooted at baseURL.
func NewFeedClient(baseURL string, maxRetries int, backoff time.Duration, logger *slog.Logger) *FeedClient {
	return &FeedClient{
		client: newClient(baseURL, maxRetries, backoff),
		logger: logger.With("component", "feed-client"),
	}
}

// CreateFeed publishes a new feed entry.
func (c *FeedClient) CreateFeed(ctx context.Context, req domain.FeedCreateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodPost, "/feeds", req, nil); err != nil {
		return fmt.Errorf("feeds module: %w", err)
	}
	return nil
}

// NotifierClient delivers recipient notifications through the notification gateway.
type NotifierClient struct {
	client
	logger *slog.Logger
}

// NewNotifierClient creates a notification-gateway client rooted at baseURL.
func NewNotifierClient(baseURL string, maxRetries int, backoff time.Duration, logger *slog.Logger) *NotifierClient {
	return &NotifierClient{
		client: newClient(baseURL, maxRetries, backoff),
		logger: logger.With("component", "notifier-client"),
	}
}

// Notify sends one message to one recipient.
func (c *NotifierClient) Notify(ctx context.Context, recipientID, message string) error {
	body := map[string]string{"recipient_id": recipientID, "message": message}
	if err := c.doJSON(ctx, http.MethodPost, "/notifications", body, nil); err != nil {
		return fmt.Errorf("notification gateway: %w", err)
	}
	return nil
}
