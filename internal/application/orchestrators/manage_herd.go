package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"dairysense/internal/domain/animal"
	"dairysense/internal/domain/audit"
	"dairysense/internal/domain/device"
	"dairysense/internal/domain/user"
)

// AnimalAPI is the slice of the API client used for animals.
type AnimalAPI interface {
	SaveAnimal(ctx context.Context, a animal.Animal) (animal.Animal, error)
	DeleteAnimal(ctx context.Context, id int) error
}

// AnimalDeps holds dependencies for the animal orchestrators.
type AnimalDeps struct {
	API   AnimalAPI
	Audit AuditRecorder
}

// ExecuteSaveAnimal validates and saves an animal. ID 0 creates.
// PRE: none
// POST: Returns the animal as stored by the API
func ExecuteSaveAnimal(ctx context.Context, a animal.Animal, actor Actor, deps AnimalDeps) (animal.Animal, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Earring = strings.TrimSpace(a.Earring)
	if err := a.Validate(); err != nil {
		return animal.Animal{}, err
	}
	saved, err := deps.API.SaveAnimal(ctx, a)
	if err != nil {
		return animal.Animal{}, err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryAnimal, createOrUpdate(a.ID)).
		WithResource("animal", saved.ID).
		WithDescription("Animal "+saved.Label()))
	slog.Info("animal_saved", "id", saved.ID, "created", a.ID == 0)
	return saved, nil
}

// ExecuteDeleteAnimal removes an animal.
func ExecuteDeleteAnimal(ctx context.Context, id int, actor Actor, deps AnimalDeps) error {
	if err := deps.API.DeleteAnimal(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryAnimal, audit.ActionDelete).
		WithResource("animal", id))
	return nil
}

// DeviceAPI is the slice of the API client used for devices.
type DeviceAPI interface {
	SaveDevice(ctx context.Context, d device.Device) (device.Device, error)
	DeleteDevice(ctx context.Context, id int) error
}

// DeviceDeps holds dependencies for the device orchestrators.
type DeviceDeps struct {
	API   DeviceAPI
	Audit AuditRecorder
}

// ExecuteSaveDevice validates and saves a device. ID 0 creates.
// POST: On create the returned device carries the one-time API key
// INVARIANT: The API key is never written to the audit trail or logs
func ExecuteSaveDevice(ctx context.Context, d device.Device, actor Actor, deps DeviceDeps) (device.Device, error) {
	d.SerialNumber = strings.TrimSpace(d.SerialNumber)
	if err := d.Validate(); err != nil {
		return device.Device{}, err
	}
	saved, err := deps.API.SaveDevice(ctx, d)
	if err != nil {
		return device.Device{}, err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryDevice, createOrUpdate(d.ID)).
		WithResource("device", saved.ID).
		WithDescription("Device "+saved.SerialNumber))
	slog.Info("device_saved", "id", saved.ID, "created", d.ID == 0)
	return saved, nil
}

// ExecuteDeleteDevice removes a device.
func ExecuteDeleteDevice(ctx context.Context, id int, actor Actor, deps DeviceDeps) error {
	if err := deps.API.DeleteDevice(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryDevice, audit.ActionDelete).
		WithResource("device", id))
	return nil
}

// UserAPI is the slice of the API client used for operator accounts.
type UserAPI interface {
	ListUsers(ctx context.Context) ([]user.User, error)
	SaveUser(ctx context.Context, id int, in user.Input) (user.User, error)
	DeleteUser(ctx context.Context, id int) error
}

// UserDeps holds dependencies for the user orchestrators.
type UserDeps struct {
	API   UserAPI
	Audit AuditRecorder
}

// ExecuteSaveUser validates and saves an operator account. ID 0 creates.
// PRE: none
// POST: Password changes are audited without the password itself
func ExecuteSaveUser(ctx context.Context, id int, in user.Input, actor Actor, deps UserDeps) (user.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(id == 0); err != nil {
		return user.User{}, err
	}
	saved, err := deps.API.SaveUser(ctx, id, in)
	if err != nil {
		return user.User{}, err
	}
	desc := "User " + saved.Email
	if id != 0 && in.Password != "" {
		desc += " (password changed)"
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryUser, createOrUpdate(id)).
		WithResource("user", saved.ID).
		WithDescription(desc))
	return saved, nil
}

// ErrDeleteSelf is returned when an operator tries to delete their own account.
var ErrDeleteSelf = errors.New("you cannot delete your own account")

// ExecuteDeleteUser removes an operator account.
// INVARIANT: The acting operator's own account is never deleted
func ExecuteDeleteUser(ctx context.Context, id int, actor Actor, deps UserDeps) error {
	users, err := deps.API.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == id && strings.EqualFold(u.Email, actor.Email) {
			return ErrDeleteSelf
		}
	}
	if err := deps.API.DeleteUser(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, deps.Audit, actor.
		event(audit.CategoryUser, audit.ActionDelete).
		WithResource("user", id).
		WithSeverity(audit.SeverityWarning))
	return nil
}
