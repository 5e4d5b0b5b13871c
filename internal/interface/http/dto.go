package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentRequest is the body of POST /students.
type CreateStudentRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"required,email,max=320"`
	Avatar string `json:"avatar" validate:"omitempty,max=2048"`
}

// CreateEmailRequest is the body of POST /emails.
type CreateEmailRequest struct {
	StudentID    string     `json:"studentId" validate:"required"`
	Type         string     `json:"type" validate:"required,oneof=AT_RISK_ALERT CONFUSION_ALERT MEETING_REQUEST ENCOURAGEMENT REMINDER"`
	Subject      string     `json:"subject" validate:"required,max=500"`
	Content      string     `json:"content" validate:"required"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=HIGH MEDIUM LOW"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// ProcessRequest is the body of POST /engagement/process.
// Only presence is checked here; the route picks single or batch mode.
type ProcessRequest struct {
	StudentID  string `json:"studentId"`
	SessionID  string `json:"sessionId"`
	ProcessAll bool   `json:"processAll"`
}

// PreviewTemplateRequest is the body of POST /templates/{id}/preview.
type PreviewTemplateRequest struct {
	Bindings map[string]string `json:"bindings"`
}

// MissingParametersMessage is returned when a process request names neither mode.
const MissingParametersMessage = "Missing required parameters"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads JSON into dst and validates struct tags.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput, "invalid request body", err)
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return shared.WrapError("http", "Validate", shared.ErrValidation, "invalid request", err)
	}
	return shared.WrapError("http", "Validate", shared.ErrValidation, describe(verrs[0]), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// queryLimit parses the optional limit parameter. Zero means the default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, shared.ValidationError("http", "ParseLimit", "limit must be a non-negative integer")
	}
	return n, nil
}
