package models

import "time"

// FileProcessState is the reader's bookkeeping for one tracked log file.
type FileProcessState struct {
	Offset        int64     `json:"offset"`
	LastModified  time.Time `json:"lastModified"`
	LastProcessed time.Time `json:"lastProcessed"`
	FileSize      int64     `json:"fileSize"`
}
