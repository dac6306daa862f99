package services

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Laporan"

var exportHeader = []string{
	"Tanggal", "NIS", "Nama", "Rombel", "Status Puasa", "Alasan Tidak Puasa",
	"Sholat Fardhu", "Jumlah Sholat", "Ibadah Sunnah", "Tadarus", "Kebiasaan",
}

// BuildSheetWorkbook renders rows as an XLSX workbook with one header row.
func BuildSheetWorkbook(rows []SheetRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheetName); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(exportSheetName, "A1", &exportHeader); err != nil {
		return nil, err
	}

	for i, r := range rows {
		alasan := ""
		if r.AlasanTidakPuasa != nil {
			alasan = *r.AlasanTidakPuasa
		}
		record := []interface{}{
			r.Tanggal,
			r.NIS,
			r.Fullname,
			r.Rombel,
			r.StatusPuasa,
			alasan,
			strings.Join(r.SholatFardhu, ", "),
			len(r.SholatFardhu),
			strings.Join(r.IbadahSunnah, ", "),
			r.Tadarus,
			strings.Join(r.Kebiasaan, ", "),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheetName, cell, &record); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(exportSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
