package services

import (
	"context"
	"time"

	"laporan_ramadhan/utils"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const recapTimeout = 2 * time.Minute

// RecapScheduler logs yesterday's per-rombel summary on a cron schedule.
type RecapScheduler struct {
	sheets *SheetService
	spec   string
	cron   *cron.Cron
}

// NewRecapScheduler schedules in the sheet service's zone. An empty spec disables it.
func NewRecapScheduler(sheets *SheetService, spec string) *RecapScheduler {
	return &RecapScheduler{
		sheets: sheets,
		spec:   spec,
		cron: cron.New(
			cron.WithLocation(sheets.Location()),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start registers the job and starts the cron runner.
func (rs *RecapScheduler) Start() error {
	if rs.spec == "" {
		logrus.Info("Daily recap disabled")
		return nil
	}
	if _, err := rs.cron.AddFunc(rs.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), recapTimeout)
		defer cancel()
		if _, err := rs.RunDailyRecap(ctx); err != nil {
			logrus.WithError(err).Error("Daily recap failed")
		}
	}); err != nil {
		return err
	}
	rs.cron.Start()
	logrus.WithField("schedule", rs.spec).Info("Daily recap scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (rs *RecapScheduler) Stop() {
	<-rs.cron.Stop().Done()
}

// RunDailyRecap summarizes the previous calendar day.
func (rs *RecapScheduler) RunDailyRecap(ctx context.Context) ([]RombelSummary, error) {
	yesterday := utils.DateIn(rs.sheets.now().AddDate(0, 0, -1), rs.sheets.loc)

	summary, err := rs.sheets.Summarize(ctx, utils.SheetFilter{Tanggal: yesterday})
	if err != nil {
		return nil, err
	}

	for _, s := range summary {
		logrus.WithFields(logrus.Fields{
			"tanggal":         yesterday,
			"rombel":          s.Rombel,
			"total_siswa":     s.TotalSiswa,
			"total_laporan":   s.TotalLaporan,
			"avg_puasa_penuh": s.AvgPuasaPenuh,
			"avg_sholat":      s.AvgSholat,
			"avg_tadarus":     s.AvgTadarus,
		}).Info("Daily recap")
	}
	return summary, nil
}
