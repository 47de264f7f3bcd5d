package domain

import "time"

const windowIDLayout = "20060102"

// DateRange is a half-open [Start, End) range of dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) ID() string {
	return r.Start.Format(windowIDLayout) + "_" + r.End.Format(windowIDLayout)
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Window is an adjacent (train, test) pair; TrainEnd == TestStart.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// ID identifies the window by its train half.
func (w Window) ID() string {
	return w.Train().ID()
}

func (w Window) Train() DateRange {
	return DateRange{Start: w.TrainStart, End: w.TrainEnd}
}

func (w Window) Test() DateRange {
	return DateRange{Start: w.TestStart, End: w.TestEnd}
}

type WindowInfo struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	WindowID  string `json:"window_id"`
}

func (r DateRange) Info() WindowInfo {
	return WindowInfo{
		StartDate: r.Start.Format("2006-01-02"),
		EndDate:   r.End.Format("2006-01-02"),
		WindowID:  r.ID(),
	}
}
