package web

import (
	"net/http"
	"strconv"
	"time"

	"dairysense/internal/application/orchestrators"
	"dairysense/internal/application/projections"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/picker"
)

// assignmentRequest is the device-animal form. Dates are "YYYY-MM-DD";
// an empty EndDate leaves the assignment open.
type assignmentRequest struct {
	ID        int
	AnimalID  int
	DeviceID  int
	StartDate string
	EndDate   string
}

func (req assignmentRequest) input() (assignment.Input, error) {
	start, err := parseDate("StartDate", req.StartDate)
	if err != nil {
		return assignment.Input{}, err
	}
	end, err := parseDate("EndDate", req.EndDate)
	if err != nil {
		return assignment.Input{}, err
	}
	return assignment.Input{AnimalID: req.AnimalID, DeviceID: req.DeviceID, StartDate: start, EndDate: end}, nil
}

// handleDeviceAnimals handles GET (list and form) and POST (save) for /device-animals
func handleDeviceAnimals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !isHTMLRequest(r) {
			rows, err := projections.QueryGetAssignments(r.Context(), upstream(r), timeNow())
			if err != nil {
				upstreamError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, rows)
			return
		}
		// The form round-trips through GET so availability narrows without script.
		q := r.URL.Query()
		form := assignmentRequest{StartDate: q.Get("StartDate"), EndDate: q.Get("EndDate")}
		form.ID, _ = queryInt(r, "edit")
		form.AnimalID, _ = queryInt(r, "AnimalID")
		form.DeviceID, _ = queryInt(r, "DeviceID")
		renderAssignments(w, r, http.StatusOK, form, "")

	case http.MethodPost:
		var req assignmentRequest
		render := func(status int, msg string) { renderAssignments(w, r, status, req, msg) }
		err := bind(r, &req, func(f *formReader) {
			req.ID = f.int("ID")
			req.AnimalID = f.int("AnimalID")
			req.DeviceID = f.int("DeviceID")
			req.StartDate = f.str("StartDate")
			req.EndDate = f.str("EndDate")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		in, err := req.input()
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		saved, err := orchestrators.ExecuteSaveAssignment(r.Context(), orchestrators.SaveAssignmentInput{
			ID:    req.ID,
			Input: in,
			Actor: actorFrom(r),
		}, orchestrators.AssignmentDeps{API: upstream(r), Audit: app.Audit})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if isHTMLRequest(r) {
			redirect(w, r, "/device-animals")
			return
		}
		writeJSON(w, http.StatusOK, saved)

	default:
		methodNotAllowed(w)
	}
}

// renderAssignments draws the assignment list and the form with its two
// searchable pickers. Picker options are limited to what is free in the
// form's period.
func renderAssignments(w http.ResponseWriter, r *http.Request, status int, form assignmentRequest, formErr string) {
	ctx := r.Context()
	up := upstream(r)

	rows, err := projections.QueryGetAssignments(ctx, up, timeNow())
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if form.ID != 0 && form.AnimalID == 0 && form.DeviceID == 0 {
		for _, row := range rows {
			if row.ID == form.ID {
				form.AnimalID, form.DeviceID = row.AnimalID, row.DeviceID
				form.StartDate = period.FormatDate(row.StartDate)
				form.EndDate = period.FormatDate(row.EndDate)
			}
		}
	}

	// Unparseable dates fall back to the unfiltered lists; the save reports them.
	start, _ := parseDate("StartDate", form.StartDate)
	end, _ := parseDate("EndDate", form.EndDate)
	avail, err := projections.QueryGetAvailability(ctx, projections.GetAvailabilityQuery{
		StartDate:           start,
		EndDate:             end,
		ExcludeAssignmentID: form.ID,
		AnimalID:            form.AnimalID,
		DeviceID:            form.DeviceID,
	}, up)
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}

	q := r.URL.Query()
	animals := newPickerView(avail.Animals, form.AnimalID, q.Get("animal_q"), "Select an animal")
	devices := newPickerView(avail.Devices, form.DeviceID, q.Get("device_q"), "Select a device")

	renderPage(w, r, status, "device_animals.html", map[string]any{
		"Rows":    rows,
		"Form":    form,
		"Animals": animals,
		"Devices": devices,
		"Error":   formErr,
	})
}

// pickerView is the server-rendered state of one searchable select.
type pickerView struct {
	Options []picker.Option
	Value   string
	Display string
	Term    string
	Hint    string
}

func newPickerView(all []picker.Option, selected int, term, placeholder string) pickerView {
	value := ""
	if selected != 0 {
		value = strconv.Itoa(selected)
	}
	filtered := picker.Filter(all, term)
	return pickerView{
		Options: picker.Keep(filtered, all, value),
		Value:   value,
		Display: picker.Display(all, value, placeholder),
		Term:    term,
		Hint:    picker.Hint(all, filtered, term),
	}
}

// handleDeviceAnimalDelete handles POST /device-animals/delete
func handleDeviceAnimalDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	render := func(status int, msg string) { renderAssignments(w, r, status, assignmentRequest{}, msg) }
	id, err := bindID(r)
	if err == nil {
		err = orchestrators.ExecuteDeleteAssignment(r.Context(), id, actorFrom(r), orchestrators.AssignmentDeps{API: upstream(r), Audit: app.Audit})
	}
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		redirect(w, r, "/device-animals")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAvailability handles GET /api/device-animals/available. It answers
// the form's question of which animals and devices are free between
// start_date and end_date, ignoring exclude_id (the assignment being edited)
// and keeping the selected animal_id and device_id.
func handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	var (
		query projections.GetAvailabilityQuery
		err   error
	)
	dates := []struct {
		key string
		dst *time.Time
	}{
		{"start_date", &query.StartDate},
		{"end_date", &query.EndDate},
	}
	for _, d := range dates {
		if *d.dst, err = parseDate(d.key, q.Get(d.key)); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"exclude_id", &query.ExcludeAssignmentID},
		{"animal_id", &query.AnimalID},
		{"device_id", &query.DeviceID},
	}
	for _, n := range ints {
		if *n.dst, err = queryInt(r, n.key); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	avail, err := projections.QueryGetAvailability(r.Context(), query, upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}
