package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/alert-engine/internal/api/dto"
	"github.com/spec-kit/alert-engine/internal/auth"
	"github.com/spec-kit/alert-engine/internal/domain"
	"github.com/spec-kit/alert-engine/internal/service"
	"github.com/spec-kit/alert-engine/pkg/util/errorutil"
)

// AnalysisTrigger requests an out-of-cycle reconciliation pass.
type AnalysisTrigger interface {
	TriggerNow() bool
}

// AlertsHandler exposes the recurring-alert API.
type AlertsHandler struct {
	lifecycle *service.LifecycleService
	trigger   AnalysisTrigger
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(lifecycle *service.LifecycleService, trigger AnalysisTrigger) *AlertsHandler {
	return &AlertsHandler{lifecycle: lifecycle, trigger: trigger}
}

// TriggerAnalysis POST /alerts/analysis/trigger. Returns immediately; a
// pass already in flight means accepted=false (the running pass covers
// the same intent).
func (h *AlertsHandler) TriggerAnalysis(c *fiber.Ctx) error {
	accepted := h.trigger.TriggerNow()
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": dto.TriggerAnalysisResponse{Accepted: accepted},
	})
}

// ListAlerts GET /alerts?status=.
func (h *AlertsHandler) ListAlerts(c *fiber.Ctx) error {
	var status *domain.AlertStatus
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		parsed := domain.AlertStatus(raw)
		switch parsed {
		case domain.AlertStatusActive, domain.AlertStatusAcknowledged,
			domain.AlertStatusResolved, domain.AlertStatusDismissed:
			status = &parsed
		default:
			return errorutil.NewValidationError("unknown status filter", map[string]any{"status": raw})
		}
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	alerts, err := h.lifecycle.ListAlerts(c.UserContext(), status, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		items = append(items, alertResponse(&alerts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetAlert GET /alerts/:id.
func (h *AlertsHandler) GetAlert(c *fiber.Ctx) error {
	alert, audit, err := h.lifecycle.GetAlert(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	detail := dto.AlertDetailResponse{AlertResponse: alertResponse(alert)}
	for i := range audit {
		detail.Audit = append(detail.Audit, dto.AlertAuditResponse{
			ID:           audit[i].ID,
			FromStatus:   audit[i].FromStatus,
			ToStatus:     audit[i].ToStatus,
			ActingUserID: audit[i].ActingUserID,
			Notes:        audit[i].Notes,
			CreatedAt:    audit[i].CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": detail})
}

// GetStats GET /alerts/stats.
func (h *AlertsHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.lifecycle.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AlertStatsResponse{
		Total:        stats.Total,
		Active:       stats.Active,
		Acknowledged: stats.Acknowledged,
		Resolved:     stats.Resolved,
		Dismissed:    stats.Dismissed,
	}})
}

// Acknowledge POST /alerts/:id/acknowledge.
func (h *AlertsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("agent required")
	}
	var req dto.AlertActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}
	alert, err := h.lifecycle.Acknowledge(c.UserContext(), c.Params("id"), principal.AgentID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

// Resolve POST /alerts/:id/resolve.
func (h *AlertsHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("agent required")
	}
	var req dto.ResolveAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	alert, err := h.lifecycle.Resolve(c.UserContext(), c.Params("id"), principal.AgentID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

// Dismiss POST /alerts/:id/dismiss.
func (h *AlertsHandler) Dismiss(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthorized("agent required")
	}
	var req dto.AlertActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorutil.NewValidationError("invalid payload", nil)
		}
	}
	alert, err := h.lifecycle.Dismiss(c.UserContext(), c.Params("id"), principal.AgentID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

func alertResponse(alert *domain.RecurringAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:                   alert.ID,
		GroupType:            alert.Key.Type,
		GroupKey:             alert.Key.Value,
		Label:                alert.Label,
		Severity:             alert.Severity,
		OccurrenceCount:      alert.OccurrenceCount,
		AffectedUsers:        alert.AffectedUsers,
		FirstOccurrence:      alert.FirstOccurrence,
		LastOccurrence:       alert.LastOccurrence,
		Keywords:             alert.Keywords,
		SuggestedAction:      alert.SuggestedAction,
		Status:               alert.Status,
		AcknowledgedByUserID: alert.AcknowledgedByUserID,
		AcknowledgedAt:       alert.AcknowledgedAt,
		ResolvedByUserID:     alert.ResolvedByUserID,
		ResolvedAt:           alert.ResolvedAt,
		Notes:                alert.Notes,
		MemberTicketIDs:      alert.MemberTicketIDs,
		CreatedAt:            alert.CreatedAt,
		UpdatedAt:            alert.UpdatedAt,
	}
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
