// Package seed loads a small demo plant into an empty database.
package seed

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/store"
)

// Demo account credentials created by Import.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "Admin123!"
	TechEmail     = "tech@example.com"
	TechPassword  = "Tech123!"
	UserEmail     = "user@example.com"
	UserPassword  = "User123!"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Destroy removes every row the backend owns.
func Destroy(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_machine_mapping").Error; err != nil {
			return fmt.Errorf("clear subscription mapping: %w", err)
		}
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []any{&model.PushSubscription{}, &model.Alert{}, &model.Maintenance{}, &model.Machine{}, &model.User{}} {
			if err := all.Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

// Import wipes the database and loads three accounts, three machines and a
// handful of alerts and maintenance records.
func Import(ctx context.Context, db *gorm.DB) error {
	logger := logging.GetLoggerFromContext(ctx)
	if err := Destroy(ctx, db); err != nil {
		return err
	}
	logger.Info().Msg("existing data removed")

	return store.NewGormStore(db).Transaction(ctx, func(tx store.Store) error {
		admin, err := createUser(ctx, tx, "Admin User", AdminEmail, AdminPassword, model.RoleAdmin, "Management", "+1234567890")
		if err != nil {
			return err
		}
		tech, err := createUser(ctx, tx, "John Technician", TechEmail, TechPassword, model.RoleTechnician, "Maintenance", "+1234567891")
		if err != nil {
			return err
		}
		regular, err := createUser(ctx, tx, "Regular User", UserEmail, UserPassword, model.RoleUser, "Production", "+1234567892")
		if err != nil {
			return err
		}
		logger.Info().Int("count", 3).Msg("users created")

		machines := []*model.Machine{
			{
				Name:                     "Laser Cutter A",
				Model:                    "LC-2000",
				SerialNumber:             "LC2000-1234",
				Location:                 "Hall A",
				Status:                   model.MachineOperational,
				Description:              "Main laser cutting machine for denim processing",
				InstallationDate:         day("2021-01-15"),
				LastMaintenance:          day("2023-07-10"),
				NextScheduledMaintenance: day("2023-10-10"),
				MaintenanceInterval:      90,
				Manufacturer:             "LaserTech Industries",
				CreatedByID:              admin.ID,
				Metrics:                  model.Metrics{Performance: 95, Availability: 98, Quality: 99},
			},
			{
				Name:                     "Washing Machine B",
				Model:                    "WM-3000",
				SerialNumber:             "WM3000-5678",
				Location:                 "Hall B",
				Status:                   model.MachineMaintenance,
				Description:              "Industrial washing machine for denim treatment",
				InstallationDate:         day("2021-05-20"),
				LastMaintenance:          day("2023-08-05"),
				NextScheduledMaintenance: day("2023-11-05"),
				MaintenanceInterval:      90,
				Manufacturer:             "WashTech Solutions",
				CreatedByID:              admin.ID,
				Metrics:                  model.Metrics{Performance: 88, Availability: 85, Quality: 92},
			},
			{
				Name:                     "Drying Unit C",
				Model:                    "DU-1500",
				SerialNumber:             "DU1500-9012",
				Location:                 "Hall A",
				Status:                   model.MachineError,
				Description:              "High-capacity drying unit for processed denim",
				InstallationDate:         day("2020-11-10"),
				LastMaintenance:          day("2023-06-15"),
				NextScheduledMaintenance: day("2023-09-15"),
				MaintenanceInterval:      90,
				Manufacturer:             "DryTech Corp",
				CreatedByID:              admin.ID,
				Metrics:                  model.Metrics{Performance: 65, Availability: 60, Quality: 90},
			},
		}
		for _, m := range machines {
			if err := tx.CreateMachine(ctx, m); err != nil {
				return fmt.Errorf("create machine %s: %w", m.SerialNumber, err)
			}
		}
		logger.Info().Int("count", len(machines)).Msg("machines created")

		alerts := []*model.Alert{
			{
				Title:       "Laser Cutter Temperature Warning",
				Description: "Machine temperature exceeding normal operating range by 15°C.",
				MachineID:   machines[0].ID,
				Priority:    model.PriorityMedium,
				Status:      model.AlertOpen,
				CreatedByID: regular.ID,
				CreatedAt:   day("2023-09-28"),
			},
			{
				Title:        "Washing Machine B Vibration",
				Description:  "Unusual vibration detected during spin cycle.",
				MachineID:    machines[1].ID,
				Priority:     model.PriorityLow,
				Status:       model.AlertAssigned,
				CreatedByID:  regular.ID,
				AssignedToID: &tech.ID,
				CreatedAt:    day("2023-09-25"),
			},
			{
				Title:        "Drying Unit C Heating Element Failure",
				Description:  "Heating element not reaching target temperature.",
				MachineID:    machines[2].ID,
				Priority:     model.PriorityCritical,
				Status:       model.AlertInProgress,
				CreatedByID:  regular.ID,
				AssignedToID: &tech.ID,
				CreatedAt:    day("2023-09-22"),
			},
		}
		for _, a := range alerts {
			a.Photos = []string{}
			if err := tx.CreateAlert(ctx, a); err != nil {
				return fmt.Errorf("create alert %q: %w", a.Title, err)
			}
		}
		logger.Info().Int("count", len(alerts)).Msg("alerts created")

		records := []*model.Maintenance{
			{
				Title:               "Quarterly Maintenance - Laser Cutter",
				MachineID:           machines[0].ID,
				Type:                model.MaintenancePreventive,
				Description:         "Regular quarterly maintenance including lens cleaning, alignment check, and calibration.",
				ScheduledDate:       day("2023-10-15"),
				EstimatedDuration:   4,
				RequiredParts:       []string{"lens", "filter", "calibration-tools"},
				AssignedTechnicians: []uint{tech.ID},
				Status:              model.MaintenanceScheduled,
				Priority:            model.MaintenanceMedium,
				CreatedByID:         admin.ID,
				CreatedAt:           day("2023-09-20"),
			},
			{
				Title:               "Washing Machine Emergency Repair",
				MachineID:           machines[1].ID,
				Type:                model.MaintenanceCorrective,
				Description:         "Fix unusual vibration detected during operation. Check motor mounts and bearings.",
				ScheduledDate:       day("2023-09-30"),
				EstimatedDuration:   6,
				RequiredParts:       []string{"bearings", "motor-mounts"},
				AssignedTechnicians: []uint{tech.ID},
				Status:              model.MaintenanceInProgress,
				Priority:            model.MaintenanceHigh,
				CreatedByID:         admin.ID,
				CreatedAt:           day("2023-09-26"),
			},
		}
		for _, m := range records {
			if err := tx.CreateMaintenance(ctx, m); err != nil {
				return fmt.Errorf("create maintenance %q: %w", m.Title, err)
			}
		}
		logger.Info().Int("count", len(records)).Msg("maintenance records created")
		return nil
	})
}

func createUser(ctx context.Context, s store.Store, name, email, password string, role model.Role, department, contact string) (*model.User, error) {
	u := &model.User{
		Name:          name,
		Email:         email,
		Role:          role,
		Department:    department,
		ContactNumber: contact,
		IsActive:      true,
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	return u, nil
}
