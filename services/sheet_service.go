package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"laporan_ramadhan/models"
	"laporan_ramadhan/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MsgSheetCreated    = "Laporan berhasil disimpan"
	MsgSheetUpdated    = "Laporan berhasil diperbarui"
	msgFutureDate      = "Tidak bisa mengisi laporan untuk tanggal di masa depan"
	msgSheetLocked     = "Laporan untuk tanggal yang sudah lewat tidak bisa diubah"
	msgInvalidStatus   = "Status puasa tidak valid"
	msgIncompleteSheet = "Data laporan tidak lengkap atau tidak sesuai format"
	msgInvalidDate     = "Format tanggal harus YYYY-MM-DD"
	msgReasonRequired  = "Alasan tidak puasa wajib diisi"
	msgStudentNotFound = "Siswa tidak ditemukan"
	msgSaveFailed      = "Terjadi kesalahan saat menyimpan laporan"
	msgReadFailed      = "Terjadi kesalahan saat mengambil data"

	// MaxExportRows bounds an unpaginated export.
	MaxExportRows = 10000
)

var validate = newSheetValidator()

func newSheetValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("status_puasa", func(fl validator.FieldLevel) bool {
		return models.IsValidStatusPuasa(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return utils.IsISODate(fl.Field().String())
	})
	return v
}

// SheetSubmission is the body of a report submission. Pointer and slice fields must be
// present in the payload; Go zero values stand in for JSON null.
type SheetSubmission struct {
	NIS              string   `json:"nis" validate:"required,max=50"`
	Fullname         string   `json:"fullname" validate:"required,max=255"`
	Rombel           string   `json:"rombel" validate:"required,max=100"`
	Tanggal          string   `json:"tanggal" validate:"required,isodate"`
	SholatFardhu     []string `json:"sholat_fardhu" validate:"required,max=5"`
	StatusPuasa      string   `json:"status_puasa" validate:"required,status_puasa"`
	AlasanTidakPuasa *string  `json:"alasan_tidak_puasa"`
	IbadahSunnah     []string `json:"ibadah_sunnah" validate:"required"`
	Tadarus          *string  `json:"tadarus" validate:"required"`
	Kebiasaan        []string `json:"kebiasaan" validate:"required"`
}

// SheetFields is the mutable content of a sheet; an update replaces all of it.
type SheetFields struct {
	SholatFardhu     []string
	StatusPuasa      string
	AlasanTidakPuasa *string
	IbadahSunnah     []string
	Tadarus          string
	Kebiasaan        []string
}

type SubmitResult struct {
	Message string `json:"message"`
	Updated bool   `json:"updated,omitempty"`
	SheetID uint   `json:"-"`
}

// SheetRow is a sheet joined with its student.
type SheetRow struct {
	ID               uint              `json:"id"`
	Tanggal          string            `json:"tanggal"`
	SholatFardhu     models.StringList `json:"sholat_fardhu"`
	StatusPuasa      string            `json:"status_puasa"`
	AlasanTidakPuasa *string           `json:"alasan_tidak_puasa"`
	IbadahSunnah     models.StringList `json:"ibadah_sunnah"`
	Tadarus          string            `json:"tadarus"`
	Kebiasaan        models.StringList `json:"kebiasaan"`
	CreatedAt        time.Time         `json:"created_at"`
	NIS              string            `json:"nis"`
	Fullname         string            `json:"fullname"`
	Rombel           string            `json:"rombel"`
}

type PageInfo struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"hasMore"`
	NextOffset int  `json:"nextOffset"`
}

type SheetPage struct {
	Sheets     []SheetRow `json:"sheets"`
	Pagination PageInfo   `json:"pagination"`
}

type StudentSheets struct {
	ID       uint           `json:"id"`
	NIS      string         `json:"nis"`
	Fullname string         `json:"fullname"`
	Rombel   string         `json:"rombel"`
	Sheets   []models.Sheet `json:"sheets"`
}

// SheetService owns students and report sheets. Dates are compared as YYYY-MM-DD
// strings in the service's location.
type SheetService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewSheetService(db *gorm.DB, loc *time.Location) *SheetService {
	if loc == nil {
		loc = utils.LoadLocation(utils.DefaultTimezone)
	}
	return &SheetService{db: db, loc: loc, now: time.Now}
}

// WithClock replaces the clock; used by tests and the recap job.
func (s *SheetService) WithClock(now func() time.Time) *SheetService {
	s.now = now
	return s
}

func (s *SheetService) Location() *time.Location { return s.loc }

// Today is the current calendar date in the report zone.
func (s *SheetService) Today() string {
	return utils.DateIn(s.now(), s.loc)
}

// NormalizeSubmission trims and validates a submission. PENUH clears the reason; any
// other status requires one.
func NormalizeSubmission(in SheetSubmission) (*SheetSubmission, error) {
	out := in
	out.NIS = utils.SanitizeString(in.NIS)
	out.Fullname = utils.SanitizeString(in.Fullname)
	out.Rombel = utils.SanitizeString(in.Rombel)
	out.Tanggal = strings.TrimSpace(in.Tanggal)
	if in.Tadarus != nil {
		tadarus := utils.SanitizeString(*in.Tadarus)
		out.Tadarus = &tadarus
	}
	if in.SholatFardhu != nil {
		out.SholatFardhu = utils.CopyList(in.SholatFardhu)
	}
	if in.IbadahSunnah != nil {
		out.IbadahSunnah = utils.CopyList(in.IbadahSunnah)
	}
	if in.Kebiasaan != nil {
		out.Kebiasaan = utils.CopyList(in.Kebiasaan)
	}

	if err := validate.Struct(out); err != nil {
		return nil, submissionError(err)
	}

	if out.StatusPuasa == models.StatusPuasaPenuh {
		out.AlasanTidakPuasa = nil
	} else {
		if out.AlasanTidakPuasa == nil {
			return nil, utils.ValidationError(msgReasonRequired)
		}
		reason := utils.SanitizeString(*out.AlasanTidakPuasa)
		if reason == "" {
			return nil, utils.ValidationError(msgReasonRequired)
		}
		out.AlasanTidakPuasa = &reason
	}
	return &out, nil
}

func submissionError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return utils.ValidationError(msgIncompleteSheet).Wrap(err)
	}
	for _, fe := range verrs {
		switch {
		case fe.Field() == "StatusPuasa" && fe.Tag() == "status_puasa":
			return utils.ValidationError(msgInvalidStatus).Wrap(err)
		case fe.Field() == "Tanggal" && fe.Tag() == "isodate":
			return utils.ValidationError(msgInvalidDate).Wrap(err)
		}
	}
	return utils.ValidationError(msgIncompleteSheet).Wrap(err)
}

// Submit validates, rejects future dates before touching the store, then records the
// student and the sheet.
func (s *SheetService) Submit(ctx context.Context, in SheetSubmission) (*SubmitResult, error) {
	sub, err := NormalizeSubmission(in)
	if err != nil {
		return nil, err
	}

	if sub.Tanggal > s.Today() {
		return nil, futureDateError()
	}

	studentID, err := s.FindOrCreateStudent(ctx, sub.NIS, sub.Fullname, sub.Rombel)
	if err != nil {
		return nil, err
	}

	return s.UpsertSheet(ctx, studentID, sub.Tanggal, SheetFields{
		SholatFardhu:     sub.SholatFardhu,
		StatusPuasa:      sub.StatusPuasa,
		AlasanTidakPuasa: sub.AlasanTidakPuasa,
		IbadahSunnah:     sub.IbadahSunnah,
		Tadarus:          *sub.Tadarus,
		Kebiasaan:        sub.Kebiasaan,
	})
}

// FindOrCreateStudent returns the id for nis, overwriting fullname and rombel when the
// student already exists.
func (s *SheetService) FindOrCreateStudent(ctx context.Context, nis, fullname, rombel string) (uint, error) {
	db := s.db.WithContext(ctx)

	var student models.Student
	err := db.Where("nis = ?", nis).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		student = models.Student{NIS: nis, Fullname: fullname, Rombel: rombel}
		err = db.Create(&student).Error
		if err == nil {
			return student.ID, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, utils.InternalError(msgSaveFailed).Wrap(err)
		}
		// lost the insert race; the row exists now
		err = db.Where("nis = ?", nis).First(&student).Error
	}
	if err != nil {
		return 0, utils.InternalError(msgSaveFailed).Wrap(err)
	}

	if student.Fullname != fullname || student.Rombel != rombel {
		err = db.Model(&student).Updates(map[string]interface{}{
			"fullname": fullname,
			"rombel":   rombel,
		}).Error
		if err != nil {
			return 0, utils.InternalError(msgSaveFailed).Wrap(err)
		}
	}
	return student.ID, nil
}

// UpsertSheet applies the date lock: future dates are rejected, an existing sheet is
// replaced only on its own day, and a missing sheet is created for any non-future date.
func (s *SheetService) UpsertSheet(ctx context.Context, studentID uint, tanggal string, fields SheetFields) (*SubmitResult, error) {
	today := s.Today()
	if tanggal > today {
		return nil, futureDateError()
	}
	return s.upsertSheet(ctx, studentID, tanggal, today, fields, true)
}

func (s *SheetService) upsertSheet(ctx context.Context, studentID uint, tanggal, today string, fields SheetFields, canRetry bool) (*SubmitResult, error) {
	db := s.db.WithContext(ctx)

	var existing models.Sheet
	err := db.Where("student_id = ? AND tanggal = ?", studentID, tanggal).First(&existing).Error
	switch {
	case err == nil:
		if tanggal != today {
			return nil, utils.LockedError(msgSheetLocked).
				With("readonly", true).
				With("existingDate", tanggal)
		}
		applyFields(&existing, fields)
		if err := db.Save(&existing).Error; err != nil {
			return nil, utils.InternalError(msgSaveFailed).Wrap(err)
		}
		return &SubmitResult{Message: MsgSheetUpdated, Updated: true, SheetID: existing.ID}, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		sheet := models.Sheet{StudentID: studentID, Tanggal: tanggal}
		applyFields(&sheet, fields)
		if err := db.Create(&sheet).Error; err != nil {
			if canRetry && errors.Is(err, gorm.ErrDuplicatedKey) {
				logrus.WithFields(logrus.Fields{
					"student_id": studentID,
					"tanggal":    tanggal,
				}).Info("Concurrent sheet insert detected, re-evaluating")
				return s.upsertSheet(ctx, studentID, tanggal, today, fields, false)
			}
			return nil, utils.InternalError(msgSaveFailed).Wrap(err)
		}
		return &SubmitResult{Message: MsgSheetCreated, SheetID: sheet.ID}, nil

	default:
		return nil, utils.InternalError(msgSaveFailed).Wrap(err)
	}
}

func applyFields(sheet *models.Sheet, f SheetFields) {
	sheet.SholatFardhu = utils.CopyList(f.SholatFardhu)
	sheet.StatusPuasa = f.StatusPuasa
	sheet.AlasanTidakPuasa = f.AlasanTidakPuasa
	if f.StatusPuasa == models.StatusPuasaPenuh {
		sheet.AlasanTidakPuasa = nil
	}
	sheet.IbadahSunnah = utils.CopyList(f.IbadahSunnah)
	sheet.Tadarus = f.Tadarus
	sheet.Kebiasaan = utils.CopyList(f.Kebiasaan)
}

func futureDateError() *utils.AppError {
	return utils.ValidationError(msgFutureDate).With("future", true)
}

const sheetRowColumns = `s.id, s.tanggal, s.sholat_fardhu, s.status_puasa, s.alasan_tidak_puasa,
	s.ibadah_sunnah, s.tadarus, s.kebiasaan, s.created_at, st.nis, st.fullname, st.rombel`

func (s *SheetService) sheetRowsQuery(ctx context.Context, f utils.SheetFilter) *gorm.DB {
	q := s.db.WithContext(ctx).
		Table("sheets AS s").
		Select(sheetRowColumns).
		Joins("JOIN students AS st ON st.id = s.student_id")

	if f.NIS != "" {
		q = q.Where("st.nis = ?", f.NIS)
	}
	if f.Rombel != "" {
		q = q.Where("st.rombel = ?", f.Rombel)
	}
	exact, from, to := f.DateRange()
	if exact != "" {
		q = q.Where("s.tanggal = ?", exact)
	}
	if from != "" {
		q = q.Where("s.tanggal >= ?", from)
	}
	if to != "" {
		q = q.Where("s.tanggal <= ?", to)
	}
	return q.Order("s.tanggal DESC").Order("s.created_at DESC").Order("s.id DESC")
}

// ListSheets returns one page of joined rows. hasMore comes from fetching limit+1 rows.
func (s *SheetService) ListSheets(ctx context.Context, f utils.SheetFilter, p utils.Pagination) (*SheetPage, error) {
	p = utils.NewPagination(p.Limit, p.Offset)

	rows := []SheetRow{}
	err := s.sheetRowsQuery(ctx, f).Limit(p.Limit + 1).Offset(p.Offset).Scan(&rows).Error
	if err != nil {
		return nil, utils.InternalError(msgReadFailed).Wrap(err)
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	return &SheetPage{
		Sheets: rows,
		Pagination: PageInfo{
			Limit:      p.Limit,
			Offset:     p.Offset,
			HasMore:    hasMore,
			NextOffset: p.Offset + len(rows),
		},
	}, nil
}

// ExportSheets returns every matching row up to MaxExportRows.
func (s *SheetService) ExportSheets(ctx context.Context, f utils.SheetFilter) ([]SheetRow, error) {
	rows := []SheetRow{}
	if err := s.sheetRowsQuery(ctx, f).Limit(MaxExportRows).Scan(&rows).Error; err != nil {
		return nil, utils.InternalError(msgReadFailed).Wrap(err)
	}
	return rows, nil
}

// GetStudentSheets returns one student with their sheets, newest first.
func (s *SheetService) GetStudentSheets(ctx context.Context, nis string, f utils.SheetFilter) (*StudentSheets, error) {
	db := s.db.WithContext(ctx)

	var student models.Student
	err := db.Where("nis = ?", nis).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundError(msgStudentNotFound)
	}
	if err != nil {
		return nil, utils.InternalError(msgReadFailed).Wrap(err)
	}

	q := db.Where("student_id = ?", student.ID)
	exact, from, to := f.DateRange()
	if exact != "" {
		q = q.Where("tanggal = ?", exact)
	}
	if from != "" {
		q = q.Where("tanggal >= ?", from)
	}
	if to != "" {
		q = q.Where("tanggal <= ?", to)
	}

	sheets := []models.Sheet{}
	if err := q.Order("tanggal DESC").Order("created_at DESC").Find(&sheets).Error; err != nil {
		return nil, utils.InternalError(msgReadFailed).Wrap(err)
	}

	return &StudentSheets{
		ID:       student.ID,
		NIS:      student.NIS,
		Fullname: student.Fullname,
		Rombel:   student.Rombel,
		Sheets:   sheets,
	}, nil
}

// ListRombel returns the distinct rombel labels, sorted.
func (s *SheetService) ListRombel(ctx context.Context) ([]string, error) {
	rombel := []string{}
	err := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Distinct("rombel").
		Order("rombel").
		Pluck("rombel", &rombel).Error
	if err != nil {
		return nil, utils.InternalError("Terjadi kesalahan saat mengambil data rombel").Wrap(err)
	}
	return rombel, nil
}
