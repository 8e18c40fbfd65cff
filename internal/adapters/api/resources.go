package api

import (
	"context"
	"net/http"
	"strconv"

	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/assignment"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/user"
)

func itemPath(collection string, id int) string {
	return "/" + collection + "/" + strconv.Itoa(id)
}

// ListAnimals returns every animal.
func (s *Session) ListAnimals(ctx context.Context) ([]animal.Animal, error) {
	var out []animalDTO
	if err := s.get(ctx, "/animals", nil, &out); err != nil {
		return nil, err
	}
	animals := make([]animal.Animal, len(out))
	for i, a := range out {
		animals[i] = a.domain()
	}
	return animals, nil
}

// SaveAnimal creates the animal when a.ID is 0, otherwise updates it.
// POST: Returns the stored animal as echoed by the API
func (s *Session) SaveAnimal(ctx context.Context, a animal.Animal) (animal.Animal, error) {
	method, path := http.MethodPost, "/animals"
	if a.ID != 0 {
		method, path = http.MethodPut, itemPath("animals", a.ID)
	}
	var out animalDTO
	if err := s.send(ctx, method, path, nil, newAnimalBody(a), &out); err != nil {
		return animal.Animal{}, err
	}
	if out.ID == 0 {
		out.ID = a.ID
	}
	return out.domain(), nil
}

// DeleteAnimal removes an animal.
func (s *Session) DeleteAnimal(ctx context.Context, id int) error {
	return s.send(ctx, http.MethodDelete, itemPath("animals", id), nil, nil, nil)
}

// ListBreeds returns the breed reference list.
func (s *Session) ListBreeds(ctx context.Context) ([]animal.Breed, error) {
	var out []breedDTO
	if err := s.get(ctx, "/breeds", nil, &out); err != nil {
		return nil, err
	}
	breeds := make([]animal.Breed, len(out))
	for i, b := range out {
		breeds[i] = animal.Breed{ID: b.ID, Name: b.Name}
	}
	return breeds, nil
}

// ListDevices returns every device.
func (s *Session) ListDevices(ctx context.Context) ([]device.Device, error) {
	var out []deviceDTO
	if err := s.get(ctx, "/devices", nil, &out); err != nil {
		return nil, err
	}
	devices := make([]device.Device, len(out))
	for i, d := range out {
		devices[i] = d.domain()
	}
	return devices, nil
}

// SaveDevice creates the device when d.ID is 0, otherwise updates it.
// On create the returned device carries the one-time APIKey.
func (s *Session) SaveDevice(ctx context.Context, d device.Device) (device.Device, error) {
	method, path := http.MethodPost, "/devices"
	if d.ID != 0 {
		method, path = http.MethodPut, itemPath("devices", d.ID)
	}
	var body deviceBody
	body.Device.SerialNumber = d.SerialNumber
	var out deviceDTO
	if err := s.send(ctx, method, path, nil, body, &out); err != nil {
		return device.Device{}, err
	}
	if out.ID == 0 {
		out.ID = d.ID
	}
	return out.domain(), nil
}

// DeleteDevice removes a device.
func (s *Session) DeleteDevice(ctx context.Context, id int) error {
	return s.send(ctx, http.MethodDelete, itemPath("devices", id), nil, nil, nil)
}

// ListUsers returns every console user.
func (s *Session) ListUsers(ctx context.Context) ([]user.User, error) {
	var out []userDTO
	if err := s.get(ctx, "/users", nil, &out); err != nil {
		return nil, err
	}
	users := make([]user.User, len(out))
	for i, u := range out {
		users[i] = u.domain()
	}
	return users, nil
}

// SaveUser creates the user when id is 0, otherwise updates it.
// An empty password is omitted so the API keeps the current one.
func (s *Session) SaveUser(ctx context.Context, id int, in user.Input) (user.User, error) {
	method, path := http.MethodPost, "/users"
	if id != 0 {
		method, path = http.MethodPut, itemPath("users", id)
	}
	body := userBody{Name: in.Name, Email: in.Email, Password: in.Password}
	var out userEnvelope
	if err := s.send(ctx, method, path, nil, body, &out); err != nil {
		return user.User{}, err
	}
	u := out.domain()
	if u.ID == 0 {
		u.ID = id
	}
	return u, nil
}

// DeleteUser removes a user.
func (s *Session) DeleteUser(ctx context.Context, id int) error {
	return s.send(ctx, http.MethodDelete, itemPath("users", id), nil, nil, nil)
}

// ListAssignments returns every device-animal assignment.
func (s *Session) ListAssignments(ctx context.Context) ([]assignment.Assignment, error) {
	var out []assignmentDTO
	if err := s.get(ctx, "/device_animals", nil, &out); err != nil {
		return nil, err
	}
	list := make([]assignment.Assignment, len(out))
	for i, a := range out {
		list[i] = a.domain()
	}
	return list, nil
}

// SaveAssignment creates the assignment when id is 0, otherwise updates it.
func (s *Session) SaveAssignment(ctx context.Context, id int, in assignment.Input) (assignment.Assignment, error) {
	method, path := http.MethodPost, "/device_animals"
	if id != 0 {
		method, path = http.MethodPut, itemPath("device_animals", id)
	}
	var out assignmentDTO
	if err := s.send(ctx, method, path, nil, newAssignmentBody(in), &out); err != nil {
		return assignment.Assignment{}, err
	}
	a := out.domain()
	if a.ID == 0 {
		a.ID = id
	}
	return a, nil
}

// DeleteAssignment removes an assignment.
func (s *Session) DeleteAssignment(ctx context.Context, id int) error {
	return s.send(ctx, http.MethodDelete, itemPath("device_animals", id), nil, nil, nil)
}
