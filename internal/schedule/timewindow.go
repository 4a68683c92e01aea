package schedule

// Day-window arithmetic. All timestamps are epoch microseconds (versioned
// inputs — the engine never reads wall-clock time) and every window is
// exactly one day length wide, anchored to the schedule start.

// DayIndexAt returns the zero-based day index containing nowUs.
// Callers must ensure nowUs >= startUs; before the start the schedule
// is simply not active yet and there is no day index to speak of.
func DayIndexAt(nowUs, startUs, dayLengthUs int64) int64 {
	if dayLengthUs <= 0 {
		return 0
	}
	if nowUs < startUs {
		return 0
	}
	return (nowUs - startUs) / dayLengthUs
}

// WindowBounds returns the [start, end) boundaries of a day window.
func WindowBounds(dayIndex, startUs, dayLengthUs int64) (int64, int64) {
	windowStart := startUs + dayIndex*dayLengthUs
	return windowStart, windowStart + dayLengthUs
}
