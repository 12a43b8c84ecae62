package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/reportcard"
)

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	agg := reportcard.New(db, v.GetInt("report-concurrency"))
	studentID, courseID := v.GetInt64("student"), v.GetInt64("course")
	export := model.ReportExport{GeneratedAt: time.Now().UTC()}

	switch {
	case studentID > 0 && courseID > 0:
		card, err := agg.CourseReport(ctx, studentID, courseID)
		if err != nil {
			return fmt.Errorf("course report: %w", err)
		}
		export.Course = &card
	default:
		students := []int64{studentID}
		if studentID == 0 {
			students, err = db.ListStudents(ctx, courseID)
			if err != nil {
				return fmt.Errorf("list students: %w", err)
			}
		}
		for _, id := range students {
			rep, err := agg.StudentReport(ctx, id)
			if err != nil {
				return fmt.Errorf("report for student %d: %w", id, err)
			}
			export.Students = append(export.Students, rep)
		}
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
