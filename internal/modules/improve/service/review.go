package service

import (
	"time"

	"github.com/montanaflynn/stats"

	"trade_agent/internal/models"
)

// Report — сводка performance-ревью. Чистое вычисление, всегда успешно.
type Report struct {
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	TotalPnL  float64 `json:"total_pnl"`
	MeanPnL   float64 `json:"mean_pnl"`
	MedianPnL float64 `json:"median_pnl"`
	StdDevPnL float64 `json:"stddev_pnl"`
	TimedOut  int     `json:"timed_out"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func BuildReport(snap models.WindowSnapshot) Report {
	r := Report{Trades: len(snap.Outcomes), From: snap.From, To: snap.To}
	if r.Trades == 0 {
		return r
	}

	pnls := snap.PnLs()
	for i, o := range snap.Outcomes {
		if pnls[i] > 0 {
			r.Wins++
		}
		if o.Result.Status == models.ExecTimedOut {
			r.TimedOut++
		}
	}
	r.WinRate = float64(r.Wins) / float64(r.Trades)

	// montanaflynn/stats возвращает ошибку только на пустом входе
	r.TotalPnL, _ = stats.Sum(pnls)
	r.MeanPnL, _ = stats.Mean(pnls)
	r.MedianPnL, _ = stats.Median(pnls)
	r.StdDevPnL, _ = stats.StandardDeviation(pnls)

	return r
}
