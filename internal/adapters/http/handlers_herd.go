package web

import (
	"net/http"

	"dairysense/internal/application/listutil"
	"dairysense/internal/application/orchestrators"
	"dairysense/internal/application/projections"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/user"
)

type idRequest struct {
	ID int
}

func bindID(r *http.Request) (int, error) {
	var req idRequest
	err := bind(r, &req, func(f *formReader) {
		req.ID = f.int("ID")
	})
	if err == nil && req.ID <= 0 {
		err = &inputError{field: "ID"}
	}
	return req.ID, err
}

// --- Animals ---

type animalRequest struct {
	ID      int
	Name    string
	BreedID int
	Age     int
	Earring string
}

// handleAnimals handles GET (list) and POST (create or update) for /animals
func handleAnimals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if isHTMLRequest(r) {
			form := animalRequest{}
			form.ID, _ = queryInt(r, "edit")
			renderAnimals(w, r, http.StatusOK, form, "")
			return
		}
		p := listutil.Parse(r.URL.Query(), projections.AnimalSortColumns)
		result, err := projections.QueryGetAnimalList(r.Context(), p, upstream(r))
		if err != nil {
			upstreamError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var req animalRequest
		render := func(status int, msg string) { renderAnimals(w, r, status, req, msg) }
		err := bind(r, &req, func(f *formReader) {
			req.ID = f.int("ID")
			req.Name = f.str("Name")
			req.BreedID = f.int("BreedID")
			req.Age = f.int("Age")
			req.Earring = f.str("Earring")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		saved, err := orchestrators.ExecuteSaveAnimal(r.Context(), animal.Animal{
			ID:      req.ID,
			Name:    req.Name,
			BreedID: req.BreedID,
			Age:     req.Age,
			Earring: req.Earring,
		}, actorFrom(r), orchestrators.AnimalDeps{API: upstream(r), Audit: app.Audit})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if isHTMLRequest(r) {
			redirect(w, r, "/animals")
			return
		}
		writeJSON(w, http.StatusOK, saved)

	default:
		methodNotAllowed(w)
	}
}

// renderAnimals draws the animal list and form. A form with only an ID is
// filled from the matching row.
func renderAnimals(w http.ResponseWriter, r *http.Request, status int, form animalRequest, formErr string) {
	p := listutil.Parse(r.URL.Query(), projections.AnimalSortColumns)
	result, err := projections.QueryGetAnimalList(r.Context(), p, upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if form.ID != 0 && form.Name == "" {
		for _, row := range result.Rows {
			if row.ID == form.ID {
				form = animalRequest{ID: row.ID, Name: row.Name, BreedID: row.BreedID, Age: row.Age, Earring: row.Earring}
			}
		}
	}
	renderPage(w, r, status, "animals.html", map[string]any{
		"Rows":           result.Rows,
		"Breeds":         result.Breeds,
		"Page":           result.Page,
		"Params":         result.Params,
		"PerPageOptions": listutil.PerPageOptions,
		"Form":           form,
		"Error":          formErr,
	})
}

// handleAnimalDelete handles POST /animals/delete
func handleAnimalDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	render := func(status int, msg string) { renderAnimals(w, r, status, animalRequest{}, msg) }
	id, err := bindID(r)
	if err == nil {
		err = orchestrators.ExecuteDeleteAnimal(r.Context(), id, actorFrom(r), orchestrators.AnimalDeps{API: upstream(r), Audit: app.Audit})
	}
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		redirect(w, r, "/animals")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Devices ---

type deviceRequest struct {
	ID           int
	SerialNumber string
}

// handleDevices handles GET (list) and POST (create or update) for /devices.
// The API key of a new device is only ever shown in the create response.
func handleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if isHTMLRequest(r) {
			form := deviceRequest{}
			form.ID, _ = queryInt(r, "edit")
			renderDevices(w, r, http.StatusOK, form, "", nil)
			return
		}
		p := listutil.Parse(r.URL.Query(), projections.DeviceSortColumns)
		result, err := projections.QueryGetDeviceList(r.Context(), p, upstream(r))
		if err != nil {
			upstreamError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var req deviceRequest
		render := func(status int, msg string) { renderDevices(w, r, status, req, msg, nil) }
		err := bind(r, &req, func(f *formReader) {
			req.ID = f.int("ID")
			req.SerialNumber = f.str("SerialNumber")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		saved, err := orchestrators.ExecuteSaveDevice(r.Context(), device.Device{
			ID:           req.ID,
			SerialNumber: req.SerialNumber,
		}, actorFrom(r), orchestrators.DeviceDeps{API: upstream(r), Audit: app.Audit})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		switch {
		case !isHTMLRequest(r):
			writeJSON(w, http.StatusOK, saved)
		case req.ID == 0 && saved.APIKey != "":
			renderDevices(w, r, http.StatusCreated, deviceRequest{}, "", &saved)
		default:
			redirect(w, r, "/devices")
		}

	default:
		methodNotAllowed(w)
	}
}

func renderDevices(w http.ResponseWriter, r *http.Request, status int, form deviceRequest, formErr string, created *device.Device) {
	p := listutil.Parse(r.URL.Query(), projections.DeviceSortColumns)
	result, err := projections.QueryGetDeviceList(r.Context(), p, upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if form.ID != 0 && form.SerialNumber == "" {
		for _, row := range result.Rows {
			if row.ID == form.ID {
				form.SerialNumber = row.SerialNumber
			}
		}
	}
	renderPage(w, r, status, "devices.html", map[string]any{
		"Rows":           result.Rows,
		"Page":           result.Page,
		"Params":         result.Params,
		"PerPageOptions": listutil.PerPageOptions,
		"Form":           form,
		"Created":        created,
		"Error":          formErr,
	})
}

// handleDeviceDelete handles POST /devices/delete
func handleDeviceDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	render := func(status int, msg string) { renderDevices(w, r, status, deviceRequest{}, msg, nil) }
	id, err := bindID(r)
	if err == nil {
		err = orchestrators.ExecuteDeleteDevice(r.Context(), id, actorFrom(r), orchestrators.DeviceDeps{API: upstream(r), Audit: app.Audit})
	}
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		redirect(w, r, "/devices")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Users ---

type userRequest struct {
	ID              int
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// handleUsers handles GET (list) and POST (create or update) for /users
func handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if isHTMLRequest(r) {
			form := userRequest{}
			form.ID, _ = queryInt(r, "edit")
			renderUsers(w, r, http.StatusOK, form, "")
			return
		}
		p := listutil.Parse(r.URL.Query(), projections.UserSortColumns)
		result, err := projections.QueryGetUserList(r.Context(), p, upstream(r))
		if err != nil {
			upstreamError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var req userRequest
		render := func(status int, msg string) {
			renderUsers(w, r, status, userRequest{ID: req.ID, Name: req.Name, Email: req.Email}, msg)
		}
		err := bind(r, &req, func(f *formReader) {
			req.ID = f.int("ID")
			req.Name = f.str("Name")
			req.Email = f.str("Email")
			req.Password = f.raw("Password")
			req.ConfirmPassword = f.raw("ConfirmPassword")
		})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		saved, err := orchestrators.ExecuteSaveUser(r.Context(), req.ID, user.Input{
			Name:            req.Name,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		}, actorFrom(r), orchestrators.UserDeps{API: upstream(r), Audit: app.Audit})
		if err != nil {
			upstreamError(w, r, err, render)
			return
		}
		if isHTMLRequest(r) {
			redirect(w, r, "/users")
			return
		}
		writeJSON(w, http.StatusOK, saved)

	default:
		methodNotAllowed(w)
	}
}

// renderUsers never echoes passwords back into the form.
func renderUsers(w http.ResponseWriter, r *http.Request, status int, form userRequest, formErr string) {
	p := listutil.Parse(r.URL.Query(), projections.UserSortColumns)
	result, err := projections.QueryGetUserList(r.Context(), p, upstream(r))
	if err != nil {
		upstreamError(w, r, err, nil)
		return
	}
	if form.ID != 0 && form.Name == "" {
		for _, row := range result.Rows {
			if row.ID == form.ID {
				form.Name, form.Email = row.Name, row.Email
			}
		}
	}
	renderPage(w, r, status, "users.html", map[string]any{
		"Rows":           result.Rows,
		"Page":           result.Page,
		"Params":         result.Params,
		"PerPageOptions": listutil.PerPageOptions,
		"Form":           form,
		"Error":          formErr,
	})
}

// handleUserDelete handles POST /users/delete
func handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	render := func(status int, msg string) { renderUsers(w, r, status, userRequest{}, msg) }
	id, err := bindID(r)
	if err == nil {
		err = orchestrators.ExecuteDeleteUser(r.Context(), id, actorFrom(r), orchestrators.UserDeps{API: upstream(r), Audit: app.Audit})
	}
	if err != nil {
		upstreamError(w, r, err, render)
		return
	}
	if isHTMLRequest(r) {
		redirect(w, r, "/users")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
