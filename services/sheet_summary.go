package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"laporan_ramadhan/models"
	"laporan_ramadhan/utils"

	"github.com/sirupsen/logrus"
)

// RombelSummary aggregates one rombel. Percentages are averaged over the matching
// reports only and are 0 when there are none.
type RombelSummary struct {
	Rombel        string  `json:"rombel"`
	TotalSiswa    int     `json:"total_siswa"`
	TotalLaporan  int     `json:"total_laporan"`
	AvgPuasaPenuh float64 `json:"avg_puasa_penuh"`
	AvgSholat     float64 `json:"avg_sholat"`
	AvgTadarus    float64 `json:"avg_tadarus"`
}

// summaryRow is one student LEFT JOIN their matching sheets; sheet columns are nil when
// the student has no matching report.
type summaryRow struct {
	StudentID    uint
	Rombel       string
	SheetID      *uint
	StatusPuasa  *string
	SholatFardhu *string
	Tadarus      *string
}

type rombelAccumulator struct {
	students map[uint]struct{}
	sheets   map[uint]struct{}
	penuh    float64
	sholat   float64
	tadarus  float64
}

// Summarize aggregates per rombel. The date filter is part of the join so every rombel
// with students is listed; NIS is ignored.
func (s *SheetService) Summarize(ctx context.Context, f utils.SheetFilter) ([]RombelSummary, error) {
	join := "LEFT JOIN sheets AS s ON s.student_id = st.id"
	var args []interface{}
	exact, from, to := f.DateRange()
	if exact != "" {
		join += " AND s.tanggal = ?"
		args = append(args, exact)
	}
	if from != "" {
		join += " AND s.tanggal >= ?"
		args = append(args, from)
	}
	if to != "" {
		join += " AND s.tanggal <= ?"
		args = append(args, to)
	}

	q := s.db.WithContext(ctx).
		Table("students AS st").
		Select("st.id AS student_id, st.rombel, s.id AS sheet_id, s.status_puasa, s.sholat_fardhu, s.tadarus").
		Joins(join, args...)
	if f.Rombel != "" {
		q = q.Where("st.rombel = ?", f.Rombel)
	}

	var rows []summaryRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, utils.InternalError("Terjadi kesalahan saat mengambil data ringkasan").Wrap(err)
	}

	acc := map[string]*rombelAccumulator{}
	for _, r := range rows {
		a, ok := acc[r.Rombel]
		if !ok {
			a = &rombelAccumulator{students: map[uint]struct{}{}, sheets: map[uint]struct{}{}}
			acc[r.Rombel] = a
		}
		a.students[r.StudentID] = struct{}{}

		if r.SheetID == nil {
			continue
		}
		if _, seen := a.sheets[*r.SheetID]; seen {
			continue
		}
		a.sheets[*r.SheetID] = struct{}{}

		if r.StatusPuasa != nil && *r.StatusPuasa == models.StatusPuasaPenuh {
			a.penuh += 100
		}
		a.sholat += sholatRate(r.SholatFardhu, *r.SheetID)
		if r.Tadarus != nil && strings.TrimSpace(*r.Tadarus) != "" {
			a.tadarus += 100
		}
	}

	out := make([]RombelSummary, 0, len(acc))
	for rombel, a := range acc {
		sum := RombelSummary{
			Rombel:       rombel,
			TotalSiswa:   len(a.students),
			TotalLaporan: len(a.sheets),
		}
		if n := float64(len(a.sheets)); n > 0 {
			sum.AvgPuasaPenuh = round1(a.penuh / n)
			sum.AvgSholat = round1(a.sholat / n)
			sum.AvgTadarus = round1(a.tadarus / n)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rombel < out[j].Rombel })
	return out, nil
}

// sholatRate is completed prayers / 5 as a percentage, capped at 100.
func sholatRate(raw *string, sheetID uint) float64 {
	if raw == nil || *raw == "" {
		return 0
	}
	var prayers []string
	if err := json.Unmarshal([]byte(*raw), &prayers); err != nil {
		logrus.WithError(err).WithField("sheet_id", sheetID).Warn("Unreadable sholat_fardhu in summary")
		return 0
	}
	n := len(prayers)
	if n > models.MaxSholatFardhu {
		n = models.MaxSholatFardhu
	}
	return float64(n) * 100 / models.MaxSholatFardhu
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
