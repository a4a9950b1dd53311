package schedule

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quadrabot/quadra/pkg/flow"
	"github.com/quadrabot/quadra/pkg/runlog"
	"github.com/quadrabot/quadra/pkg/trigger"
	"github.com/quadrabot/quadra/pkg/tz"
)

// defaultPreviewCount is how many upcoming occurrences the preview
// endpoint returns when the caller does not ask for a specific count.
const defaultPreviewCount = 3

// Handlers handles schedule management and run inspection endpoints
type Handlers struct {
	manager Manager
	worker  *Worker
}

// NewHandlers creates a new Handlers instance
func NewHandlers(manager Manager, worker *Worker) *Handlers {
	return &Handlers{manager: manager, worker: worker}
}

// GetName returns the name of this handler for logging
func (h *Handlers) GetName() string {
	return "ScheduleHandlers"
}

// RegisterRoutes registers schedule management and run inspection routes
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/schedules")
	g.POST("", h.CreateSchedule)
	g.GET("", h.ListSchedules)
	g.GET("/:id", h.GetSchedule)
	g.PUT("/:id", h.UpdateSchedule)
	g.DELETE("/:id", h.DeleteSchedule)
	g.GET("/:id/preview", h.PreviewSchedule)
	g.POST("/:id/trigger", h.TriggerSchedule)

	r := e.Group("/runs")
	r.GET("", h.ListRuns)
	r.GET("/:id", h.GetRun)

	log.Printf("Registered schedule management routes")
}

// CreateScheduleRequest represents the request body for creating a schedule
type CreateScheduleRequest struct {
	Name               string             `json:"name"`
	SlotRef            string             `json:"slot_ref"`
	TriggerMode        trigger.Mode       `json:"trigger_mode"`
	ReservationWeekday *int               `json:"reservation_day_of_week,omitempty"`
	LocalTime          *trigger.TimeOfDay `json:"local_time,omitempty"`
	TriggerDatetime    *time.Time         `json:"trigger_datetime,omitempty"`
	Frequency          trigger.Frequency  `json:"frequency"`
	Preflight          PreflightConfig    `json:"preflight"`
	RefreshToken       string             `json:"refresh_token,omitempty"`
}

// UpdateScheduleRequest represents the request body for updating a schedule
type UpdateScheduleRequest struct {
	Name               *string            `json:"name,omitempty"`
	SlotRef            *string            `json:"slot_ref,omitempty"`
	Active             *bool              `json:"is_active,omitempty"`
	ReservationWeekday *int               `json:"reservation_day_of_week,omitempty"`
	LocalTime          *trigger.TimeOfDay `json:"local_time,omitempty"`
	TriggerDatetime    *time.Time         `json:"trigger_datetime,omitempty"`
	Frequency          *trigger.Frequency `json:"frequency,omitempty"`
	Preflight          *PreflightConfig   `json:"preflight,omitempty"`
	RefreshToken       *string            `json:"refresh_token,omitempty"`
}

// TriggerScheduleRequest represents the request body for a manual run
type TriggerScheduleRequest struct {
	Kind   runlog.Kind `json:"kind,omitempty"`
	IsTest bool        `json:"is_test,omitempty"`
}

// ScheduleResponse is the external view of a schedule. The refresh token
// never leaves the server.
type ScheduleResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	SlotRef            string            `json:"slot_ref"`
	ReservationWeekday time.Weekday      `json:"reservation_day_of_week"`
	TriggerMode        trigger.Mode      `json:"trigger_mode"`
	TriggerWeekday     time.Weekday      `json:"trigger_day_of_week"`
	TriggerTime        trigger.TimeOfDay `json:"trigger_time"`
	TriggerDatetime    *time.Time        `json:"trigger_datetime,omitempty"`
	Frequency          trigger.Frequency `json:"frequency"`
	CronExpr           string            `json:"cron_expression"`
	Active             bool              `json:"is_active"`
	Preflight          PreflightConfig   `json:"preflight"`
	NextTriggerAt      *time.Time        `json:"next_trigger_at,omitempty"`
	NextPreflightAt    *time.Time        `json:"next_preflight_at,omitempty"`
	RunCount           int               `json:"run_count"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toScheduleResponse(s *Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:                 s.ID,
		Name:               s.Name,
		SlotRef:            s.SlotRef,
		ReservationWeekday: s.ReservationWeekday,
		TriggerMode:        s.TriggerMode,
		TriggerWeekday:     s.TriggerWeekday,
		TriggerTime:        s.TriggerTime,
		TriggerDatetime:    s.TriggerDatetime,
		Frequency:          s.Frequency,
		CronExpr:           s.CronExpr,
		Active:             s.Active,
		Preflight:          s.Preflight,
		NextTriggerAt:      s.NextTriggerAt,
		NextPreflightAt:    s.NextPreflightAt,
		RunCount:           s.RunCount,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// CreateSchedule handles POST /schedules
func (h *Handlers) CreateSchedule(c echo.Context) error {
	var req CreateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.TriggerMode == "" {
		req.TriggerMode = trigger.ModeReservationRelative
	}
	if req.Frequency == "" {
		req.Frequency = trigger.FrequencyWeekly
	}

	s := &Schedule{
		Name:            req.Name,
		SlotRef:         req.SlotRef,
		TriggerMode:     req.TriggerMode,
		TriggerDatetime: req.TriggerDatetime,
		Frequency:       req.Frequency,
		Active:          true,
		Preflight:       req.Preflight,
		RefreshToken:    req.RefreshToken,
	}
	if req.ReservationWeekday != nil {
		s.ReservationWeekday = time.Weekday(*req.ReservationWeekday)
	}

	local := trigger.DefaultLocalTime
	if req.LocalTime != nil {
		local = *req.LocalTime
	}
	if err := s.ApplyTrigger(local); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.manager.Create(c.Request().Context(), s); err != nil {
		if _, ok := err.(ErrInvalidSchedule); ok {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create schedule")
	}
	return c.JSON(http.StatusCreated, toScheduleResponse(s))
}

// ListSchedules handles GET /schedules
func (h *Handlers) ListSchedules(c echo.Context) error {
	filter := Filter{}
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid active filter")
		}
		filter.Active = &active
	}

	schedules, err := h.manager.List(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list schedules")
	}

	out := make([]ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toScheduleResponse(s))
	}
	return c.JSON(http.StatusOK, map[string]any{"schedules": out})
}

// GetSchedule handles GET /schedules/:id
func (h *Handlers) GetSchedule(c echo.Context) error {
	s, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Schedule not found")
	}
	return c.JSON(http.StatusOK, toScheduleResponse(s))
}

// UpdateSchedule handles PUT /schedules/:id
func (h *Handlers) UpdateSchedule(c echo.Context) error {
	s, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Schedule not found")
	}

	var req UpdateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.SlotRef != nil {
		s.SlotRef = *req.SlotRef
	}
	if req.Active != nil {
		s.Active = *req.Active
	}
	if req.ReservationWeekday != nil {
		s.ReservationWeekday = time.Weekday(*req.ReservationWeekday)
	}
	if req.TriggerDatetime != nil {
		s.TriggerDatetime = req.TriggerDatetime
	}
	if req.Frequency != nil {
		s.Frequency = *req.Frequency
	}
	if req.Preflight != nil {
		s.Preflight = *req.Preflight
	}
	if req.RefreshToken != nil {
		s.RefreshToken = *req.RefreshToken
	}

	// Re-derive the trigger fields: any of the inputs above may have
	// moved the firing point.
	local := trigger.TimeOfDay{Hour: tz.ToLocal(s.TriggerTime.Hour), Minute: s.TriggerTime.Minute}
	if req.LocalTime != nil {
		local = *req.LocalTime
	}
	if err := s.ApplyTrigger(local); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.manager.Update(c.Request().Context(), s); err != nil {
		if _, ok := err.(ErrInvalidSchedule); ok {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update schedule")
	}
	return c.JSON(http.StatusOK, toScheduleResponse(s))
}

// DeleteSchedule handles DELETE /schedules/:id
func (h *Handlers) DeleteSchedule(c echo.Context) error {
	if err := h.manager.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Schedule not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// PreviewSchedule handles GET /schedules/:id/preview. It expands the next
// occurrences of the schedule's trigger together with the reservation
// dates they will book.
func (h *Handlers) PreviewSchedule(c echo.Context) error {
	s, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Schedule not found")
	}

	count := defaultPreviewCount
	if raw := c.QueryParam("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid count")
		}
	}

	occurrences, err := s.Preview(count, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to expand occurrences")
	}
	return c.JSON(http.StatusOK, map[string]any{"occurrences": occurrences})
}

// TriggerSchedule handles POST /schedules/:id/trigger. Manual runs default
// to a dry run against the simulated pipeline.
func (h *Handlers) TriggerSchedule(c echo.Context) error {
	s, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Schedule not found")
	}

	req := TriggerScheduleRequest{Kind: runlog.KindTest, IsTest: true}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Kind == "" {
		req.Kind = runlog.KindTest
	}

	run, err := h.worker.TriggerNow(c.Request().Context(), s, req.Kind, req.IsTest)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to execute run")
	}
	return c.JSON(http.StatusOK, buildRunView(run))
}

// StepView is one row of the interpreted run detail.
type StepView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Status      flow.StepStatus `json:"status"`
	Terminal    bool            `json:"terminal,omitempty"`
	// Notification is present only on the terminal step, carrying the
	// folded notification outcome.
	Notification *NotificationView `json:"notification,omitempty"`
}

// NotificationView is the folded notification detail of a terminal step.
type NotificationView struct {
	Status  flow.StepStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

// RunDetailResponse is the interpreted view of a run record.
type RunDetailResponse struct {
	Run       *runlog.Run `json:"run"`
	ErrorStep string      `json:"error_step,omitempty"`
	// ErrorStepLabel is a readable label for the failing step, when known
	ErrorStepLabel string     `json:"error_step_label,omitempty"`
	Steps          []StepView `json:"steps"`
}

// buildRunView normalizes a run record and derives the per-step statuses.
func buildRunView(run *runlog.Run) RunDetailResponse {
	interp := runlog.Interpret(run)

	var result *flow.Result
	if run.Terminal() {
		result = &flow.Result{
			Success: interp.Status == runlog.StatusSuccess,
			Step:    interp.ErrorStep,
		}
	}

	steps, ok := flow.Catalog(interp.Kind)
	if !ok {
		// Kinds without a fixed pipeline render the steps the runtime
		// actually logged, in order.
		steps = make([]flow.Step, 0, len(interp.Entries))
		seen := make(map[string]bool, len(interp.Entries))
		for _, entry := range interp.Entries {
			if seen[entry.Step] {
				continue
			}
			seen[entry.Step] = true
			steps = append(steps, flow.Step{ID: entry.Step, Name: runlog.StepLabel(entry.Step)})
		}
	}

	states := flow.Reduce(steps, interp.Entries, result)

	views := make([]StepView, 0, len(states))
	for _, st := range states {
		view := StepView{
			ID:          st.Step.ID,
			Name:        st.Step.Name,
			Description: st.Step.Description,
			Status:      st.Status,
			Terminal:    st.Terminal,
		}
		if st.Notification != nil {
			view.Notification = &NotificationView{Status: st.Notification.Status}
			if st.Notification.Entry != nil {
				view.Notification.Message = st.Notification.Entry.Message
			}
		}
		views = append(views, view)
	}

	resp := RunDetailResponse{Run: run, ErrorStep: interp.ErrorStep, Steps: views}
	if interp.ErrorStep != "" {
		resp.ErrorStepLabel = runlog.StepLabel(interp.ErrorStep)
	}
	return resp
}

// ListRuns handles GET /runs
func (h *Handlers) ListRuns(c echo.Context) error {
	runs, err := h.manager.ListRuns(c.Request().Context(), c.QueryParam("schedule_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list runs")
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /runs/:id
func (h *Handlers) GetRun(c echo.Context) error {
	run, err := h.manager.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Run not found")
	}
	return c.JSON(http.StatusOK, buildRunView(run))
}
