package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/minutes/internal/apperror"
)

// perPage is the number of events per listing page.
const perPage = 50

// EnabledChecker reports whether the site currently records security
// events.
type EnabledChecker interface {
	AuditEnabled(ctx context.Context) bool
}

// AuditService records and lists security events.
type AuditService interface {
	// Record persists event if auditing is enabled. Failures are logged and
	// never surface to the caller: a missing audit row must not fail the
	// action being audited.
	Record(ctx context.Context, event *SecurityEvent)

	// ListEvents returns one page of events, optionally filtered by type.
	ListEvents(ctx context.Context, eventType string, page int) (*EventPage, error)
}

type auditService struct {
	repo    EventRepository
	enabled EnabledChecker
}

// NewAuditService creates a new audit service.
func NewAuditService(repo EventRepository, enabled EnabledChecker) AuditService {
	return &auditService{repo: repo, enabled: enabled}
}

// Record implements AuditService.
func (s *auditService) Record(ctx context.Context, event *SecurityEvent) {
	if event == nil || event.EventType == "" {
		return
	}
	if s.enabled != nil && !s.enabled.AuditEnabled(ctx) {
		return
	}

	if err := s.repo.Log(ctx, event); err != nil {
		slog.Error("failed to log security event",
			slog.String("event_type", event.EventType),
			slog.String("ip", event.IPAddress),
			slog.Any("error", err),
		)
	}
}

// ListEvents implements AuditService.
func (s *auditService) ListEvents(ctx context.Context, eventType string, page int) (*EventPage, error) {
	if page < 1 {
		page = 1
	}

	events, total, err := s.repo.List(ctx, eventType, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing security events: %w", err))
	}
	if events == nil {
		events = []SecurityEvent{}
	}

	return &EventPage{Events: events, Total: total, Page: page, PerPage: perPage}, nil
}

// NewEvent starts an event stamped with the request's client IP and user
// agent.
func NewEvent(c echo.Context, eventType string) *SecurityEvent {
	return &SecurityEvent{
		EventType: eventType,
		IPAddress: c.RealIP(),
		UserAgent: truncate(c.Request().UserAgent(), 500),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
