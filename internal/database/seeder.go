// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

const (
	DefaultAdminEmail    = "admin@vitalroute.local"
	DefaultAdminPassword = "adminpassword"
)

// DefaultFleet is the starter fleet for a fresh deployment.
var DefaultFleet = []models.Vehicle{
	{VehicleID: "VEH-AMB00001", Type: models.AlertTypeAmbulance, PlateNumber: "TS09AMB0001", Status: models.VehicleAvailable},
	{VehicleID: "VEH-AMB00002", Type: models.AlertTypeAmbulance, PlateNumber: "TS09AMB0002", Status: models.VehicleAvailable},
	{VehicleID: "VEH-FIR00001", Type: models.AlertTypeFire, PlateNumber: "TS09FIR0001", Status: models.VehicleAvailable},
	{VehicleID: "VEH-POL00001", Type: models.AlertTypePolice, PlateNumber: "TS09POL0001", Status: models.VehicleAvailable},
}

// SeedAdmin creates the admin profile unless one with the same email exists.
func SeedAdmin(ctx context.Context, users store.UserStore, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		log.WithField("email", email).Info("Admin already exists. Seeding skipped.")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	log.WithField("email", email).Info("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    email,
		Name:     "Control Room Admin",
		Password: hashedPassword,
		Role:     models.RoleAdmin,
	}
	if err := users.CreateUser(ctx, &admin); err != nil {
		return err
	}

	log.WithField("userId", admin.ID).Info("Admin seeded successfully.")
	return nil
}

// SeedVehicles inserts every vehicle of fleet that is not stored yet and
// returns how many were added.
func SeedVehicles(ctx context.Context, vehicles store.VehicleStore, fleet []models.Vehicle) (int, error) {
	added := 0
	for _, v := range fleet {
		v := v
		err := vehicles.CreateVehicle(ctx, &v)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			continue
		case err != nil:
			return added, err
		}
		added++
	}
	log.WithFields(log.Fields{"added": added, "total": len(fleet)}).Info("Vehicle seeding finished.")
	return added, nil
}
