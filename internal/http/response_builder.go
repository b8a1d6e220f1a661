package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

// Client-side events fired through HX-Trigger. The listeners live in the
// templates (hx-trigger="... from:body") and in static/app.js.
const (
	EventTimerChanged   = "timer:changed"
	EventEntriesChanged = "entries:changed"
	EventCatalogChanged = "catalog:changed"
	EventFormReset      = "form:reset"
	EventModalClose     = "modal:close"
	EventNotification   = "show-notification"
)

const (
	headerTrigger            = "HX-Trigger"
	headerTriggerAfterSettle = "HX-Trigger-After-Settle"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// How long each kind of toast stays up.
const (
	successToast = 3 * time.Second
	infoToast    = 3 * time.Second
	errorToast   = 5 * time.Second
)

// HTMXResponseBuilder collects the status, body and HX-Trigger events of one
// response. Reload events fire as soon as the response arrives; UI cleanup
// (closing the modal, resetting forms) waits until the swap has settled so it
// acts on the new DOM.
type HTMXResponseBuilder struct {
	statusCode  int
	headers     http.Header
	triggers    map[string]any
	afterSettle map[string]any
	body        []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		statusCode:  http.StatusOK,
		headers:     http.Header{},
		triggers:    map[string]any{},
		afterSettle: map[string]any{},
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers.Set(name, value)
	return b
}

// Trigger fires name with detail when the response is received.
func (b *HTMXResponseBuilder) Trigger(name string, detail any) *HTMXResponseBuilder {
	b.triggers[name] = detail
	return b
}

// TriggerAfterSettle fires name with detail once htmx has settled the swap.
func (b *HTMXResponseBuilder) TriggerAfterSettle(name string, detail any) *HTMXResponseBuilder {
	b.afterSettle[name] = detail
	return b
}

func (b *HTMXResponseBuilder) TriggerTimerChanged() *HTMXResponseBuilder {
	return b.Trigger(EventTimerChanged, struct{}{})
}

// TriggerEntriesChanged reloads the day list when it shows date (yyyy-mm-dd).
func (b *HTMXResponseBuilder) TriggerEntriesChanged(date string) *HTMXResponseBuilder {
	return b.Trigger(EventEntriesChanged, map[string]string{"date": date})
}

func (b *HTMXResponseBuilder) TriggerCatalogChanged() *HTMXResponseBuilder {
	return b.Trigger(EventCatalogChanged, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.TriggerAfterSettle(EventFormReset, struct{}{})
}

func (b *HTMXResponseBuilder) TriggerModalClose() *HTMXResponseBuilder {
	return b.TriggerAfterSettle(EventModalClose, struct{}{})
}

// TriggerNotification shows a toast for d.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, d time.Duration) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": d.Milliseconds(),
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, successToast)
}

func (b *HTMXResponseBuilder) TriggerInfoNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationInfo, message, infoToast)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, errorToast)
}

// BodyHTML sets an HTML fragment as the body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers.Set("Content-Type", "text/html; charset=utf-8")
	b.body = []byte(html)
	return b
}

// Write sends headers, status and body. Headers must go out before
// WriteHeader, so the builder is the only writer of w.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.headers {
		h[name] = values
	}
	setTriggerHeader(h, headerTrigger, b.triggers)
	setTriggerHeader(h, headerTriggerAfterSettle, b.afterSettle)

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

func setTriggerHeader(h http.Header, name string, events map[string]any) {
	if len(events) == 0 {
		return
	}
	if encoded, err := json.Marshal(events); err == nil {
		h.Set(name, string(encoded))
	}
}

// ErrorResponse renders message, escaped, as an error fragment with status.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError reports a write refused because another entry is running.
func ConflictError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// MethodNotAllowedError answers 405 with the Allow header set.
func MethodNotAllowedError(allowed string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowed)
}
