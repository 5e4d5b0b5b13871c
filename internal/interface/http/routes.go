package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/alem-hub/engagement-agent/internal/application/command"
	"github.com/alem-hub/engagement-agent/internal/application/query"
	"github.com/alem-hub/engagement-agent/internal/domain/meeting"
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := s.deps.HealthChecker.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := s.deps.HealthChecker.Check(ctx)
	if !status.Ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":   false,
			"message": status.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ready": true})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": s.Uptime().String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.handleError(w, r, "list_students", err)
		return
	}

	q := r.URL.Query()
	students, err := s.deps.ListStudents.Handle(r.Context(), query.ListStudentsQuery{
		Status:  student.Status(q.Get("status")),
		Subject: q.Get("subject"),
		Limit:   limit,
	})
	if err != nil {
		s.handleError(w, r, "list_students", err)
		return
	}
	writeOK(w, http.StatusOK, "students", students)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := decodeBody(r, &req); err != nil {
		s.handleError(w, r, "create_student", err)
		return
	}

	created, err := s.deps.CreateStudent.Handle(r.Context(), command.CreateStudentCommand{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		s.handleError(w, r, "create_student", err)
		return
	}
	writeOK(w, http.StatusCreated, "student", created)
}

// ══════════════════════════════════════════════════════════════════════════════
// EMAILS & MEETINGS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.handleError(w, r, "list_emails", err)
		return
	}

	q := r.URL.Query()
	emails, err := s.deps.ListEmails.Handle(r.Context(), notification.EmailFilter{
		Status:   notification.EmailStatus(strings.ToUpper(q.Get("status"))),
		Type:     notification.EmailType(strings.ToUpper(q.Get("type"))),
		Priority: notification.Priority(strings.ToUpper(q.Get("priority"))),
		Limit:    limit,
	})
	if err != nil {
		s.handleError(w, r, "list_emails", err)
		return
	}
	writeOK(w, http.StatusOK, "emails", emails)
}

func (s *Server) handleCreateEmail(w http.ResponseWriter, r *http.Request) {
	var req CreateEmailRequest
	if err := decodeBody(r, &req); err != nil {
		s.handleError(w, r, "create_email", err)
		return
	}

	email, err := s.deps.EnqueueEmail.Handle(r.Context(), command.EnqueueEmailCommand{
		StudentID:    req.StudentID,
		Type:         notification.EmailType(req.Type),
		Subject:      req.Subject,
		Content:      req.Content,
		Priority:     notification.Priority(req.Priority),
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		s.handleError(w, r, "create_email", err)
		return
	}
	writeOK(w, http.StatusCreated, "email", email)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.handleError(w, r, "list_meetings", err)
		return
	}

	meetings, err := s.deps.ListMeetings.Handle(r.Context(), meeting.Filter{
		Status: meeting.Status(strings.ToUpper(r.URL.Query().Get("status"))),
		Limit:  limit,
	})
	if err != nil {
		s.handleError(w, r, "list_meetings", err)
		return
	}
	writeOK(w, http.StatusOK, "meetings", meetings)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

type analyticsResponse struct {
	Success bool `json:"success"`
	*query.EngagementAnalytics
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.deps.Analytics.Handle(r.Context())
	if err != nil {
		s.handleError(w, r, "engagement_analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{Success: true, EngagementAnalytics: analytics})
}

// handleProcess runs the agent. processAll with a session id selects batch
// mode; a student and session pair selects the single pipeline. The result
// body is returned as produced, including success:false outcomes.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := decodeBody(r, &req); err != nil {
		s.handleError(w, r, "process_engagement", err)
		return
	}

	switch {
	case req.ProcessAll && req.SessionID != "":
		result, err := s.deps.ProcessSession.Handle(r.Context(), command.ProcessSessionEngagementCommand{
			SessionID: req.SessionID,
		})
		if err != nil {
			s.handleError(w, r, "process_session", err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case req.StudentID != "" && req.SessionID != "":
		result, err := s.deps.ProcessStudent.Handle(r.Context(), command.ProcessStudentEngagementCommand{
			StudentID: req.StudentID,
			SessionID: req.SessionID,
		})
		if err != nil {
			s.handleError(w, r, "process_student", err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusBadRequest, MissingParametersMessage)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "templates", s.deps.Templates.List(r.URL.Query().Get("category")))
}

func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req PreviewTemplateRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.handleError(w, r, "preview_template", err)
			return
		}
	}

	id := mux.Vars(r)["id"]
	if strings.TrimSpace(id) == "" {
		s.handleError(w, r, "preview_template", shared.ValidationError("http", "PreviewTemplate", "template id is required"))
		return
	}

	preview, err := s.deps.Templates.Preview(id, req.Bindings)
	if err != nil {
		s.handleError(w, r, "preview_template", err)
		return
	}
	writeOK(w, http.StatusOK, "preview", preview)
}
