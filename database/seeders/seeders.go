package seeders

import (
	"laporan_ramadhan/models"
	"laporan_ramadhan/services/identity"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedStudents inserts the roster into an empty students table. Existing rows are
// never touched, so it is safe to run on every development start.
func SeedStudents(db *gorm.DB, roster []identity.StudentIdentity) error {
	var count int64
	if err := db.Model(&models.Student{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logrus.Info("Students already seeded, skipping...")
		return nil
	}

	students := make([]models.Student, 0, len(roster))
	for _, s := range roster {
		students = append(students, models.Student{NIS: s.NIS, Fullname: s.Fullname, Rombel: s.Rombel})
	}
	if len(students) == 0 {
		return nil
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&students).Error; err != nil {
		return err
	}
	logrus.WithField("count", len(students)).Info("Students seeded successfully")
	return nil
}
