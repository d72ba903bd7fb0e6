package domain

import "time"

// MaxLogEntries caps the attempt log; the oldest entries are evicted first.
const MaxLogEntries = 1000

// LogEntry records one blocked submission. Entries are immutable once written.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
}
