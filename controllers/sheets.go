package controllers

import (
	"fmt"

	"laporan_ramadhan/middleware"
	"laporan_ramadhan/services"
	"laporan_ramadhan/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SheetController struct {
	sheets *services.SheetService
}

func NewSheetController(sheets *services.SheetService) *SheetController {
	return &SheetController{sheets: sheets}
}

// Submit records a student's daily report
func (sc *SheetController) Submit(c *fiber.Ctx) error {
	var req services.SheetSubmission
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Data laporan tidak lengkap atau tidak sesuai format",
		})
	}

	res, err := sc.sheets.Submit(c.UserContext(), req)
	if err != nil {
		return utils.RespondError(c, err)
	}

	body := fiber.Map{"message": res.Message}
	if res.Updated {
		body["updated"] = true
	}
	return c.JSON(body)
}

// List returns one student with their sheets when nis is given without flat=1,
// otherwise a paginated list of sheets
func (sc *SheetController) List(c *fiber.Ctx) error {
	filter := utils.ParseSheetFilter(c)

	if filter.NIS != "" && !utils.IsFlat(c) {
		student, err := sc.sheets.GetStudentSheets(c.UserContext(), filter.NIS, filter)
		if err != nil {
			return utils.RespondError(c, err)
		}
		return c.JSON(fiber.Map{"student": student})
	}

	page, err := sc.sheets.ListSheets(c.UserContext(), filter, utils.ParsePagination(c))
	if err != nil {
		return utils.RespondError(c, err)
	}
	return c.JSON(page)
}

func (sc *SheetController) Rombel(c *fiber.Ctx) error {
	rombel, err := sc.sheets.ListRombel(c.UserContext())
	if err != nil {
		return utils.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"rombel": rombel})
}

func (sc *SheetController) Summary(c *fiber.Ctx) error {
	summary, err := sc.sheets.Summarize(c.UserContext(), utils.ParseSheetFilter(c))
	if err != nil {
		return utils.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"summary": summary})
}

// Export downloads the filtered sheets as an XLSX workbook
func (sc *SheetController) Export(c *fiber.Ctx) error {
	filter := utils.ParseSheetFilter(c)
	rows, err := sc.sheets.ExportSheets(c.UserContext(), filter)
	if err != nil {
		return utils.RespondError(c, err)
	}

	data, err := services.BuildSheetWorkbook(rows)
	if err != nil {
		return utils.RespondError(c, utils.InternalError("Gagal membuat file ekspor").Wrap(err))
	}

	entry := logrus.WithFields(logrus.Fields{"rows": len(rows), "rombel": filter.Rombel})
	if s := middleware.GetTeacherSession(c); s != nil {
		entry = entry.WithField("teacher", s.Username)
	}
	entry.Info("Sheet export generated")

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, exportFilename(filter, sc.sheets.Today())))
	return c.Send(data)
}

func exportFilename(f utils.SheetFilter, today string) string {
	exact, from, to := f.DateRange()
	switch {
	case exact != "":
		return "laporan-" + exact + ".xlsx"
	case from != "" || to != "":
		return "laporan-" + from + "_" + to + ".xlsx"
	default:
		return "laporan-" + today + ".xlsx"
	}
}
