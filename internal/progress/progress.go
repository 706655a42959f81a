// Package progress defines the progress payload pushed to live clients and
// a Redis-backed publisher for it.
package progress

// Payload is the stable JSON contract for job progress. Error is null
// unless the job carries a terminal error message.
type Payload struct {
	Status    string  `json:"status"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   int     `json:"percent"`
	Errors    int     `json:"errors"`
	Error     *string `json:"error"`
}

// Percent computes clamped integer completion. A positive processed count
// against an unknown or zero total reads as done.
func Percent(processed, total int) int {
	if total <= 0 {
		if processed > 0 {
			return 100
		}
		return 0
	}
	percent := processed * 100 / total
	if percent > 100 {
		return 100
	}
	return percent
}
