package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	dom "github.com/nxhieu3102/ai-assistant/internal/domain"
	"github.com/nxhieu3102/ai-assistant/internal/dto"
	"github.com/nxhieu3102/ai-assistant/internal/service"
)

// TaskHandler maps the /tasks routes onto TaskService calls. Every response
// is an Envelope: domain errors come back as HTTP 200 with status=error
// (the extension client's contract), only storage failures and programming
// errors become a 500.
type TaskHandler struct {
	svc *service.TaskService
	log *slog.Logger
}

func NewTaskHandler(svc *service.TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{svc: svc, log: log}
}

// List handles GET /tasks?date=YYYY-MM-DD.
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.svc.GetTasksForDate(c.Request.Context(), c.Query("date"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, tasks)
}

// Create handles POST /tasks?date=YYYY-MM-DD with body {text}.
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, dto.Failure("Invalid request body"))
		return
	}
	if req.Text == nil {
		c.JSON(http.StatusOK, dto.Failure("Task text is required"))
		return
	}

	task, err := h.svc.CreateTask(c.Request.Context(), *req.Text, c.Query("date"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, task)
}

// Update handles PUT /tasks/:id?date=YYYY-MM-DD with body {text?, completed?}.
func (h *TaskHandler) Update(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, dto.Failure("Invalid request body"))
		return
	}

	task, err := h.svc.UpdateTask(c.Request.Context(), c.Param("id"), req.Text, req.Completed, c.Query("date"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, task)
}

// Delete handles DELETE /tasks/:id?date=YYYY-MM-DD and returns the removed task.
func (h *TaskHandler) Delete(c *gin.Context) {
	task, err := h.svc.DeleteTask(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, task)
}

// Migrate handles POST /tasks/migrate.
func (h *TaskHandler) Migrate(c *gin.Context) {
	msg, err := h.svc.MigrateUnfinishedTasks(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, msg)
}

// Calendar handles GET /tasks/calendar.
func (h *TaskHandler) Calendar(c *gin.Context) {
	counts, err := h.svc.GetTaskCountsByDate(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, counts)
}

// Incomplete handles GET /tasks/incomplete.
func (h *TaskHandler) Incomplete(c *gin.Context) {
	tasks, err := h.svc.GetIncompleteTasks(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}
	h.respond(c, tasks)
}

func (h *TaskHandler) respond(c *gin.Context, payload any) {
	env, err := dto.Success(payload)
	if err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *TaskHandler) respondErr(c *gin.Context, err error) {
	var ve *dom.ValidationError
	var nf *dom.NotFoundError
	var inv *dom.InvalidOperationError
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &inv) {
		c.JSON(http.StatusOK, dto.Failure(err.Error()))
		return
	}
	h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, dto.Failure("Internal server error"))
}
