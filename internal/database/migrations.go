package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/models"
)

// Demo identities inserted by SeedDemoData. Fixed ids keep local tokens stable
// across restarts.
const (
	DemoAdminID     = "00000000-0000-4000-8000-000000000001"
	DemoEmployerID  = "00000000-0000-4000-8000-000000000002"
	DemoApplicantID = "00000000-0000-4000-8000-000000000003"
	DemoJobID       = "00000000-0000-4000-8000-000000000010"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.Application{},
		&models.Notification{},
		&models.SavedJob{},
	)
}

// SeedDemoData inserts one user per role and a single open job. Existing rows
// are left untouched.
func SeedDemoData(db *gorm.DB) error {
	users := []models.User{
		{
			BaseModel: models.BaseModel{ID: DemoAdminID},
			Name:      "Platform Admin",
			Email:     "admin@talenthub.local",
			Role:      models.RoleAdmin,
		},
		{
			BaseModel: models.BaseModel{ID: DemoEmployerID},
			Name:      "Erin Employer",
			Email:     "employer@talenthub.local",
			Role:      models.RoleEmployer,
			Company:   "Acme Robotics",
		},
		{
			BaseModel: models.BaseModel{ID: DemoApplicantID},
			Name:      "Alex Applicant",
			Email:     "applicant@talenthub.local",
			Role:      models.RoleApplicant,
			Location:  "Remote",
		},
	}

	for _, user := range users {
		if err := db.Where(models.User{BaseModel: models.BaseModel{ID: user.ID}}).Attrs(user).FirstOrCreate(&models.User{}).Error; err != nil {
			return err
		}
	}

	job := models.Job{
		BaseModel:   models.BaseModel{ID: DemoJobID},
		Title:       "Backend Engineer",
		Company:     "Acme Robotics",
		Location:    "Remote",
		Description: "Build the services behind our hiring pipeline.",
		CreatedBy:   DemoEmployerID,
	}
	return db.Where(models.Job{BaseModel: models.BaseModel{ID: job.ID}}).Attrs(job).FirstOrCreate(&models.Job{}).Error
}
