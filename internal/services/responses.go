package services

import "time"

const maxRecordedErrors = 100

type ScanStats struct {
	Items    int64
	Dirs     int64
	Errors   int64
	Excluded int64
	Duration time.Duration
	// ReadErrors holds the first read errors of the scan.
	ReadErrors []ReadError
}
