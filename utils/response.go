package utils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const genericServerError = "Terjadi kesalahan pada server"

// RespondError writes err as {error, ...fields}. Non-AppErrors become a generic 500 and
// only their cause is logged.
func RespondError(c *fiber.Ctx, err error) error {
	appErr, ok := AsAppError(err)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Path(),
			"method": c.Method(),
		}).Error("Unhandled request error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": genericServerError})
	}

	entry := logrus.WithFields(logrus.Fields{
		"kind":   appErr.Kind,
		"status": appErr.Status,
		"path":   c.Path(),
		"method": c.Method(),
	})
	if appErr.Err != nil {
		entry = entry.WithError(appErr.Err)
	}
	if appErr.Status >= fiber.StatusInternalServerError {
		entry.Error(appErr.Message)
	} else {
		entry.Debug(appErr.Message)
	}

	body := fiber.Map{"error": appErr.Message}
	for k, v := range appErr.Fields {
		body[k] = v
	}
	return c.Status(appErr.Status).JSON(body)
}
