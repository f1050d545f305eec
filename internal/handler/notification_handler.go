package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-fanout/internal/domain"
	"github.com/kursadbilgin/notification-fanout/internal/observability"
	"github.com/kursadbilgin/notification-fanout/internal/repository"
	"github.com/kursadbilgin/notification-fanout/internal/service"
	"go.uber.org/zap"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
	maxTitleLength  = 255
)

type NotificationService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.Notification, error)
	Enqueue(ctx context.Context, id string) error
	GetDetails(ctx context.Context, id string) (*service.NotificationDetails, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
}

type NotificationHandler struct {
	service NotificationService
	logger  *zap.Logger
}

func NewNotificationHandler(service NotificationService, logger *zap.Logger) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{service: service, logger: logger}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, logger *zap.Logger) error {
	h, err := NewNotificationHandler(service, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Post("/notifications/:id/dispatch", h.DispatchNotification)
	v1.Get("/notifications", h.ListNotifications)

	return nil
}

type createNotificationRequest struct {
	UserID     *string           `json:"userId"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Channels   []string          `json:"channels"`
	Recipients map[string]string `json:"recipients,omitempty"`
}

type createNotificationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Queued bool   `json:"queued"`
}

type notificationResponse struct {
	ID         string             `json:"id"`
	UserID     *string            `json:"userId,omitempty"`
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Channels   []string           `json:"channels"`
	Status     string             `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Deliveries []deliveryResponse `json:"deliveries,omitempty"`
}

type deliveryResponse struct {
	Channel       string     `json:"channel"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// CreateNotification stores the notification and enqueues it. A failed enqueue
// still returns 201 with queued=false; the pending sweeper picks it up later.
func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, err := requestToCreateInput(req)
	if err != nil {
		return toHTTPError(err)
	}

	ctx := c.UserContext()
	created, err := h.service.Create(ctx, input)
	if err != nil {
		return toHTTPError(err)
	}

	queued := true
	if err := h.service.Enqueue(ctx, created.ID); err != nil {
		queued = false
		observability.WithContextLogger(h.logger, ctx).Warn("notification stored but not enqueued",
			zap.String("notificationId", created.ID),
			zap.Error(err),
		)
	}

	return c.Status(fiber.StatusCreated).JSON(createNotificationResponse{
		ID:     created.ID,
		Status: created.Status.String(),
		Queued: queued,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	details, err := h.service.GetDetails(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := toNotificationResponse(&details.Notification)
	resp.Deliveries = make([]deliveryResponse, 0, len(details.Deliveries))
	for _, d := range details.Deliveries {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			Channel:       d.Channel.String(),
			Status:        d.Status.String(),
			Attempts:      d.Attempts,
			LastAttemptAt: d.LastAttemptAt,
			ErrorMessage:  d.ErrorMessage,
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// DispatchNotification re-enqueues an existing notification. Channels that
// already succeeded are not sent again.
func (h *NotificationHandler) DispatchNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Enqueue(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"notificationId": id,
		"queued":         true,
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func requestToCreateInput(req createNotificationRequest) (service.CreateInput, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return service.CreateInput{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if len([]rune(title)) > maxTitleLength {
		return service.CreateInput{}, fmt.Errorf("%w: title must be at most %d characters", domain.ErrValidation, maxTitleLength)
	}
	if len(req.Channels) == 0 {
		return service.CreateInput{}, fmt.Errorf("%w: channels is required", domain.ErrValidation)
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	seen := make(map[domain.Channel]struct{}, len(req.Channels))
	for _, raw := range req.Channels {
		channel, err := domain.ParseChannelFromString(raw)
		if err != nil {
			return service.CreateInput{}, err
		}
		if _, dup := seen[channel]; dup {
			continue
		}
		seen[channel] = struct{}{}
		channels = append(channels, channel)
	}

	var recipients map[domain.Channel]string
	if len(req.Recipients) > 0 {
		recipients = make(map[domain.Channel]string, len(req.Recipients))
		for rawChannel, address := range req.Recipients {
			channel, err := domain.ParseChannelFromString(rawChannel)
			if err != nil {
				return service.CreateInput{}, err
			}
			if _, requested := seen[channel]; !requested {
				return service.CreateInput{}, fmt.Errorf("%w: recipient given for unrequested channel %s", domain.ErrValidation, channel)
			}
			if address = strings.TrimSpace(address); address != "" {
				recipients[channel] = address
			}
		}
	}

	return service.CreateInput{
		UserID:     req.UserID,
		Title:      title,
		Body:       req.Body,
		Channels:   channels,
		Recipients: recipients,
	}, nil
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		params.UserID = &userID
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return repository.ListParams{}, fmt.Errorf("%w: from must be before to", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	channels := make([]string, 0, len(n.Channels))
	for _, ch := range n.Channels {
		channels = append(channels, ch.String())
	}

	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Channels:  channels,
		Status:    n.Status.String(),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
