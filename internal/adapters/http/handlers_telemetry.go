package web

import (
	"context"
	"net/http"
	"time"

	"dairysense/internal/application/orchestrators"
	"dairysense/internal/application/projections"
	"dairysense/internal/domain/alert"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/picker"
)

// periodForm is the animal + date range form shared by the readings,
// baseline and alert pages.
type periodForm struct {
	AnimalID int
	Start    string
	End      string
}

func (f periodForm) empty() bool {
	return f.AnimalID == 0 && f.Start == "" && f.End == ""
}

func (f periodForm) dates() (time.Time, time.Time, error) {
	start, err := parseDate("Start", f.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("End", f.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (f periodForm) baselinePeriod() (orchestrators.BaselinePeriod, error) {
	start, end, err := f.dates()
	return orchestrators.BaselinePeriod{AnimalID: f.AnimalID, Start: start, End: end}, err
}

func queryPeriodForm(r *http.Request) (periodForm, error) {
	q := r.URL.Query()
	id, err := queryInt(r, "AnimalID")
	return periodForm{AnimalID: id, Start: q.Get("Start"), End: q.Get("End")}, err
}

func animalOptions(ctx context.Context, up Upstream) ([]picker.Option, error) {
	animals, err := up.ListAnimals(ctx)
	if err != nil {
		return nil, err
	}
	return picker.Options(animals), nil
}

// --- Readings ---

// handleReadings handles GET /readings. With no animal or range selected the
// page shows only the form.
func handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	form, err := queryPeriodForm(r)
	render := func(status int, msg string) { renderReadings(w, r, status, form, nil, msg) }
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if form.empty() && isHTMLRequest(r) {
		render(http.StatusOK, "")
		return
	}
	start, end, err := form.dates()
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}

	chart, err := projections.QueryGetReadingsChart(r.Context(), projections.GetReadingsChartQuery{
		AnimalID: form.AnimalID,
		Start:    start,
		End:      end,
	}, projections.GetReadingsChartDeps{API: upstream(r), Now: timeNow, Loc: app.Loc})
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		renderReadings(w, r, http.StatusOK, form, &chart, "")
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func renderReadings(w http.ResponseWriter, r *http.Request, status int, form periodForm, chart *projections.ReadingsChartResult, formErr string) {
	animals, err := animalOptions(r.Context(), upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	renderPage(w, r, status, "readings.html", map[string]any{
		"Animals": animals,
		"Form":    form,
		"Chart":   chart,
		"MaxDays": period.ReadingsOptions().MaxDays,
		"Error":   formErr,
	})
}

// --- Baselines ---

// baselineRequest is the create form. The Preview* fields echo the period the
// operator last previewed and how many readings it found.
type baselineRequest struct {
	periodForm
	PreviewAnimalID int
	PreviewStart    string
	PreviewEnd      string
	PreviewReadings int
	Window          int
}

func (req baselineRequest) preview() (*orchestrators.BaselinePreview, error) {
	if req.PreviewAnimalID == 0 {
		return nil, nil
	}
	p, err := periodForm{AnimalID: req.PreviewAnimalID, Start: req.PreviewStart, End: req.PreviewEnd}.baselinePeriod()
	if err != nil {
		return nil, err
	}
	return &orchestrators.BaselinePreview{BaselinePeriod: p, Readings: req.PreviewReadings}, nil
}

func baselineDeps(r *http.Request) orchestrators.BaselineDeps {
	return orchestrators.BaselineDeps{API: upstream(r), Audit: app.Audit, Now: timeNow, Loc: app.Loc}
}

// handleBaselines handles GET (preview) and POST (create) for /baselines
func handleBaselines(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		form, err := queryPeriodForm(r)
		render := func(status int, msg string) { renderBaselines(w, r, status, form, nil, msg) }
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if form.empty() && isHTMLRequest(r) {
			render(http.StatusOK, "")
			return
		}
		p, err := form.baselinePeriod()
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		preview, err := orchestrators.ExecutePreviewBaseline(r.Context(), p, baselineDeps(r))
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if isHTMLRequest(r) {
			renderBaselines(w, r, http.StatusOK, form, &preview, "")
			return
		}
		writeJSON(w, http.StatusOK, preview)

	case http.MethodPost:
		var req baselineRequest
		render := func(status int, msg string) { renderBaselines(w, r, status, req.periodForm, nil, msg) }
		err := bind(r, &req, func(f *formReader) {
			req.AnimalID = f.int("AnimalID")
			req.Start = f.str("Start")
			req.End = f.str("End")
			req.PreviewAnimalID = f.int("PreviewAnimalID")
			req.PreviewStart = f.str("PreviewStart")
			req.PreviewEnd = f.str("PreviewEnd")
			req.PreviewReadings = f.int("PreviewReadings")
			req.Window = f.int("Window")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		p, err := req.baselinePeriod()
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		preview, err := req.preview()
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		err = orchestrators.ExecuteCreateBaseline(r.Context(), orchestrators.CreateBaselineInput{
			Period:  p,
			Preview: preview,
			Window:  req.Window,
			Actor:   actorFrom(r),
		}, baselineDeps(r))
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if isHTMLRequest(r) {
			redirect(w, r, "/baselines/list")
			return
		}
		w.WriteHeader(http.StatusCreated)

	default:
		methodNotAllowed(w)
	}
}

func renderBaselines(w http.ResponseWriter, r *http.Request, status int, form periodForm, preview *orchestrators.BaselinePreview, formErr string) {
	animals, err := animalOptions(r.Context(), upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	opts := period.BaselineOptions()
	renderPage(w, r, status, "baselines.html", map[string]any{
		"Animals": animals,
		"Form":    form,
		"Preview": preview,
		"MinDays": opts.MinDays,
		"MaxDays": opts.MaxDays,
		"Error":   formErr,
	})
}

// handleBaselineList handles GET /baselines/list
func handleBaselineList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	renderBaselineList(w, r, http.StatusOK, "")
}

func renderBaselineList(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	periods, err := projections.QueryGetBaselineList(r.Context(), upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if !isHTMLRequest(r) {
		writeJSON(w, status, periods)
		return
	}
	renderPage(w, r, status, "baseline_list.html", map[string]any{
		"Periods": periods,
		"Error":   formErr,
	})
}

// handleBaselineDelete handles POST /baselines/delete
func handleBaselineDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	render := func(status int, msg string) { renderBaselineList(w, r, status, msg) }
	var form periodForm
	err := bind(r, &form, func(f *formReader) {
		form.AnimalID = f.int("AnimalID")
		form.Start = f.str("Start")
		form.End = f.str("End")
	})
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	p, err := form.baselinePeriod()
	if err == nil {
		err = orchestrators.ExecuteDeleteBaseline(r.Context(), p, actorFrom(r), baselineDeps(r))
	}
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		redirect(w, r, "/baselines/list")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Alerts ---

// handleAlerts handles GET /alerts, filtered by AnimalID, Start and End.
func handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	form, err := queryPeriodForm(r)
	render := func(status int, msg string) { renderAlerts(w, r, status, form, nil, msg) }
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	start, end, err := form.dates()
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		upstreamError(w, r, &period.Error{Reason: period.ReasonInverted}, render)
		return
	}

	rows, err := projections.QueryGetAlerts(r.Context(), alert.Filter{
		AnimalID:  form.AnimalID,
		StartDate: start,
		EndDate:   end,
	}, projections.GetAlertsDeps{API: upstream(r), Now: timeNow})
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		renderAlerts(w, r, http.StatusOK, form, rows, "")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func renderAlerts(w http.ResponseWriter, r *http.Request, status int, form periodForm, rows []projections.AlertRow, formErr string) {
	animals, err := animalOptions(r.Context(), upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	renderPage(w, r, status, "alerts.html", map[string]any{
		"Animals": animals,
		"Form":    form,
		"Rows":    rows,
		"Error":   formErr,
	})
}
