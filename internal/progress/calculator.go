// Package progress はコレクションから学習進捗を算出します。
// すべて純粋関数で、現在日付は引数で受け取る。
package progress

import (
	"math"
	"time"

	"go_vocab_drill/internal/model"
)

// Plan は学習計画 (1日の目標数と開始日)
type Plan struct {
	DailyTarget int
	StartDate   time.Time
}

// StatusShare はステータスごとの件数と割合 (0-100)
type StatusShare struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type Breakdown struct {
	Total int         `json:"total"`
	Queue StatusShare `json:"queue"`
	Drill StatusShare `json:"drill"`
	Ready StatusShare `json:"ready"`
}

// Backfill は累計回数を計画の日数に換算した結果
type Backfill struct {
	ClearedDays        int       `json:"cleared_days"`
	CurrentDayProgress int       `json:"current_day_progress"`
	CurrentTargetDate  time.Time `json:"current_target_date"`
}

// Pace は予定に対する進み具合。DaysDifference が正なら前倒し、負なら遅れ。
type Pace struct {
	CurrentDayIndex     int `json:"current_day_index"`
	TargetItemsForToday int `json:"target_items_for_today"`
	DaysDifference      int `json:"days_difference"`
}

type Report struct {
	TotalCount  int       `json:"total_count"`
	Breakdown   Breakdown `json:"breakdown"`
	Backfill    Backfill  `json:"backfill"`
	Pace        Pace      `json:"pace"`
	Streak      int       `json:"streak"`
	DailyTarget int       `json:"daily_target"`
}

// TotalCount は回数の合計
func TotalCount(entries []model.Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}

// StatusBreakdown は件数に対するステータス別の割合。空なら 0%。
func StatusBreakdown(entries []model.Entry) Breakdown {
	var q, d, r int
	for _, e := range entries {
		switch e.Status {
		case model.StatusDrill:
			d++
		case model.StatusReady:
			r++
		default:
			q++
		}
	}
	n := len(entries)
	return Breakdown{
		Total: n,
		Queue: share(q, n),
		Drill: share(d, n),
		Ready: share(r, n),
	}
}

func share(count, total int) StatusShare {
	if total == 0 {
		return StatusShare{Count: count}
	}
	return StatusShare{Count: count, Percent: float64(count) * 100 / float64(total)}
}

// ComputeBackfill は累計を日数に換算します。dailyTarget は正であること。
func ComputeBackfill(totalCount int, plan Plan) Backfill {
	if plan.DailyTarget <= 0 {
		return Backfill{CurrentDayProgress: totalCount, CurrentTargetDate: calendarDay(plan.StartDate)}
	}
	cleared := totalCount / plan.DailyTarget
	return Backfill{
		ClearedDays:        cleared,
		CurrentDayProgress: totalCount % plan.DailyTarget,
		CurrentTargetDate:  calendarDay(plan.StartDate).AddDate(0, 0, cleared),
	}
}

// ComputePace は today 時点での予定との差を日数で返します。
func ComputePace(totalCount int, plan Plan, today time.Time) Pace {
	idx := DaysBetween(plan.StartDate, today)
	if plan.DailyTarget <= 0 {
		return Pace{CurrentDayIndex: idx}
	}
	target := (idx + 1) * plan.DailyTarget
	diff := float64(totalCount-target) / float64(plan.DailyTarget)
	return Pace{
		CurrentDayIndex:     idx,
		TargetItemsForToday: target,
		DaysDifference:      roundHalfUp(diff),
	}
}

// Compute はレポートをまとめて算出します。
func Compute(entries []model.Entry, plan Plan, today time.Time) Report {
	total := TotalCount(entries)
	backfill := ComputeBackfill(total, plan)
	return Report{
		TotalCount:  total,
		Breakdown:   StatusBreakdown(entries),
		Backfill:    backfill,
		Pace:        ComputePace(total, plan, today),
		Streak:      backfill.ClearedDays,
		DailyTarget: plan.DailyTarget,
	}
}

// DaysBetween は暦日の差 (時刻部分は無視)
func DaysBetween(from, to time.Time) int {
	a := calendarDay(from)
	b := calendarDay(to)
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// calendarDay はその日付の 00:00 UTC を返す (夏時間の影響を受けない)
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// roundHalfUp は 0.5 を正の方向へ丸める (-0.5 は 0)
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
