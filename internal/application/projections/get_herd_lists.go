package projections

import (
	"context"
	"fmt"
	"strconv"

	"dairysense/internal/application/listutil"
	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/period"
	"dairysense/internal/domain/user"
)

// Sortable columns per list.
var (
	AnimalSortColumns = []string{"name", "breed", "age", "earring"}
	DeviceSortColumns = []string{"serial", "created"}
	UserSortColumns   = []string{"name", "email"}
)

// AnimalRow is one animal with its breed name.
type AnimalRow struct {
	animal.Animal
	BreedName string
}

// AnimalListResult carries one page of animals plus the breed options for the form.
type AnimalListResult struct {
	Rows   []AnimalRow
	Breeds []animal.Breed
	Page   listutil.PageInfo
	Params listutil.Params
}

// QueryGetAnimalList searches, sorts and pages the herd.
// PRE: p came from listutil.Parse with AnimalSortColumns
func QueryGetAnimalList(ctx context.Context, p listutil.Params, src AnimalLister) (AnimalListResult, error) {
	animals, err := src.ListAnimals(ctx)
	if err != nil {
		return AnimalListResult{}, fmt.Errorf("list animals: %w", err)
	}
	breeds, err := src.ListBreeds(ctx)
	if err != nil {
		return AnimalListResult{}, fmt.Errorf("list breeds: %w", err)
	}

	rows := make([]AnimalRow, len(animals))
	for i, a := range animals {
		rows[i] = AnimalRow{Animal: a, BreedName: animal.BreedName(breeds, a.BreedID)}
	}
	page, info := listutil.Apply(rows, p,
		func(r AnimalRow, term string) bool { return listutil.Contains(term, r.Name, r.Earring, r.BreedName) },
		map[string]listutil.Column[AnimalRow]{
			"name":    func(r AnimalRow) string { return r.Name },
			"breed":   func(r AnimalRow) string { return r.BreedName },
			"age":     func(r AnimalRow) string { return strconv.Itoa(r.Age) },
			"earring": func(r AnimalRow) string { return r.Earring },
		})
	return AnimalListResult{Rows: page, Breeds: breeds, Page: info, Params: p}, nil
}

// DeviceListResult carries one page of devices.
type DeviceListResult struct {
	Rows   []device.Device
	Page   listutil.PageInfo
	Params listutil.Params
}

// QueryGetDeviceList searches, sorts and pages the devices.
func QueryGetDeviceList(ctx context.Context, p listutil.Params, src DeviceLister) (DeviceListResult, error) {
	devices, err := src.ListDevices(ctx)
	if err != nil {
		return DeviceListResult{}, fmt.Errorf("list devices: %w", err)
	}
	page, info := listutil.Apply(devices, p,
		func(d device.Device, term string) bool { return listutil.Contains(term, d.SerialNumber) },
		map[string]listutil.Column[device.Device]{
			"serial":  func(d device.Device) string { return d.SerialNumber },
			"created": func(d device.Device) string { return period.FormatDate(d.CreatedAt) },
		})
	return DeviceListResult{Rows: page, Page: info, Params: p}, nil
}

// UserListResult carries one page of operator accounts.
type UserListResult struct {
	Rows   []user.User
	Page   listutil.PageInfo
	Params listutil.Params
}

// QueryGetUserList searches, sorts and pages the operator accounts.
func QueryGetUserList(ctx context.Context, p listutil.Params, src UserLister) (UserListResult, error) {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return UserListResult{}, fmt.Errorf("list users: %w", err)
	}
	page, info := listutil.Apply(users, p,
		func(u user.User, term string) bool { return listutil.Contains(term, u.Name, u.Email) },
		map[string]listutil.Column[user.User]{
			"name":  func(u user.User) string { return u.Name },
			"email": func(u user.User) string { return u.Email },
		})
	return UserListResult{Rows: page, Page: info, Params: p}, nil
}
