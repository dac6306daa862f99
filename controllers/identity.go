package controllers

import (
	"laporan_ramadhan/services/identity"
	"laporan_ramadhan/utils"

	"github.com/gofiber/fiber/v2"
)

type IdentityController struct {
	students identity.StudentLookup
	mock     identity.StudentLookup
}

// NewIdentityController serves lookups from students; mock backs the development
// endpoint and may be nil.
func NewIdentityController(students, mock identity.StudentLookup) *IdentityController {
	return &IdentityController{students: students, mock: mock}
}

// GetStudent resolves ?nis= through the identity service
func (ic *IdentityController) GetStudent(c *fiber.Ctx) error {
	s, err := ic.students.Lookup(c.UserContext(), c.Query("nis"))
	if err != nil {
		return utils.RespondError(c, err)
	}
	return c.JSON(s)
}

func (ic *IdentityController) GetMockStudent(c *fiber.Ctx) error {
	if ic.mock == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Route not found"})
	}
	s, err := ic.mock.Lookup(c.UserContext(), c.Query("nis"))
	if err != nil {
		return utils.RespondError(c, err)
	}
	return c.JSON(s)
}
