package model

import "time"

// ReportExport is the top-level JSON structure written by the report command.
type ReportExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Students    []StudentReport `json:"students,omitempty"`
	Course      *ReportCard     `json:"course,omitempty"`
}
