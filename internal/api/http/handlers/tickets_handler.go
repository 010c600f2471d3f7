package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/opsdesk/internal/api/dto"
	"github.com/spec-kit/opsdesk/internal/auth"
	"github.com/spec-kit/opsdesk/internal/domain"
	"github.com/spec-kit/opsdesk/internal/lifecycle"
	"github.com/spec-kit/opsdesk/internal/service"
	apperrors "github.com/spec-kit/opsdesk/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket service over HTTP for every ticket kind.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets/:kind. With ?id= it returns that single ticket.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		return h.respondTicket(c, kind, id)
	}

	page, err := h.service.QueryTickets(c.UserContext(), kind, parseTicketQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketListResponse{
		Data: page.Items,
		Meta: dto.ListMeta{Total: page.Total, Page: page.Page, PageSize: page.PageSize},
	})
}

// GetTicket GET /tickets/:kind/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	return h.respondTicket(c, kind, c.Params("id"))
}

// CreateTicket POST /tickets/:kind.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	payload, err := parsePayload(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), kind, payload, auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.Status(fiber.StatusCreated).JSON(dto.TicketResponse{Data: *ticket})
}

// UpdateTicket PUT /tickets/:kind?id= and PUT /tickets/:kind/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	payload, err := parsePayload(c)
	if err != nil {
		return err
	}
	if err := applyIfMatch(c, payload); err != nil {
		return err
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), kind, id, payload, auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(dto.TicketResponse{Data: *ticket})
}

// DeleteTicket DELETE /tickets/:kind?id= and DELETE /tickets/:kind/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), kind, id, auth.ActorFromContext(c)); err != nil {
		return err
	}
	return c.JSON(dto.DeleteResponse{Data: dto.DeletedTicket{ID: id, Kind: kind, Deleted: true}})
}

// History GET /tickets/:kind/:id/history?order=asc|desc.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	order := strings.ToLower(c.Query("order", "asc"))
	if order != "asc" && order != "desc" {
		return apperrors.NewValidationError("order must be asc or desc", map[string]any{
			"fields": map[string][]string{"order": {"must be asc or desc"}},
		})
	}
	id := c.Params("id")
	entries, err := h.service.TicketHistory(c.UserContext(), kind, id, order == "desc")
	if err != nil {
		return err
	}
	meta := dto.HistoryMeta{TicketID: id, Order: order, Count: len(entries)}
	for i := range entries {
		if meta.Latest == nil || entries[i].Date.After(*meta.Latest) {
			date := entries[i].Date
			meta.Latest = &date
		}
	}
	return c.JSON(dto.HistoryResponse{Data: entries, Meta: meta})
}

// Stats GET /tickets/:kind/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func (h *TicketsHandler) respondTicket(c *fiber.Ctx, kind domain.TicketKind, id string) error {
	ticket, err := h.service.GetTicket(c.UserContext(), kind, id)
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(dto.TicketResponse{Data: *ticket})
}

func kindParam(c *fiber.Ctx) (domain.TicketKind, error) {
	raw := c.Params("kind")
	kind, err := domain.ParseKind(raw)
	if err != nil {
		return "", apperrors.NewUnknownKind(raw)
	}
	return kind, nil
}

func idParam(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		id = strings.TrimSpace(c.Query("id"))
	}
	if id == "" {
		return "", apperrors.NewValidationError("ticket id is required", map[string]any{
			"fields": map[string][]string{"id": {"is required"}},
		})
	}
	return id, nil
}

func parsePayload(c *fiber.Ctx) (lifecycle.Payload, error) {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return lifecycle.Payload{}, nil
	}
	var payload lifecycle.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewMalformed("request body must be a JSON object", err)
	}
	if payload == nil {
		payload = lifecycle.Payload{}
	}
	return payload, nil
}

// applyIfMatch copies an If-Match version into the payload unless the body already carries one.
func applyIfMatch(c *fiber.Ctx, payload lifecycle.Payload) error {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" || raw == "*" {
		return nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return apperrors.NewMalformed("If-Match must carry a ticket version", err)
	}
	if _, ok := payload["version"]; !ok {
		payload["version"] = float64(version)
	}
	return nil
}

func setETag(c *fiber.Ctx, ticket *domain.Ticket) {
	c.Set(fiber.HeaderETag, strconv.Quote(strconv.FormatInt(ticket.Version, 10)))
}

func parseTicketQuery(c *fiber.Ctx) service.TicketQuery {
	query := service.TicketQuery{
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), service.DefaultPageSize),
	}
	for _, part := range splitList(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(part))
	}
	return query
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
