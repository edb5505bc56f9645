package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-gradebook-api/internal/app"
	"github.com/noah-isme/sma-gradebook-api/internal/grading"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
)

func newRecalculateCmd() *cobra.Command {
	var classID string
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute stored final grades of a class from raw scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Grades.RecalculateClass(cmd.Context(), service.RecalculateRequest{
					ClassID:      classID,
					Semester:     termSemester,
					AcademicYear: termYear,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "class %s, semester %s %s: %d grades scanned, %d updated\n",
					result.ClassID, result.Term.Semester, result.Term.AcademicYear, result.Scanned, result.Updated)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newRecapCmd() *cobra.Command {
	var classID string
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Print the ranked recap of a class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				query := service.RecapQuery{ClassID: classID, Semester: termSemester, AcademicYear: termYear}
				recap, _, err := a.Recaps.Build(cmd.Context(), query)
				if err != nil {
					return err
				}
				if err := renderRecap(cmd.OutOrStdout(), recap); err != nil {
					return err
				}
				if pdfPath == "" {
					return nil
				}
				return writePDF(cmd, a, query, pdfPath)
			})
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class id")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "also write the recap PDF to this path")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newGradeCmd() *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Compute a final grade from six component scores",
		Long:  "Scores are given in weight-table order: assignment1, assignment2, quiz1, quiz2, midterm, final exam. Use - for a missing score.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scores, err := parseScores(raw)
			if err != nil {
				return err
			}
			final := grading.ComputeFinalGrade(scores)
			if final == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "final grade: - (%d of %d components filled)\n", scores.Filled(), len(models.ScoreComponents))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "final grade: %s (%s)\n", grading.FormatScore(final), grading.Predicate(final))
			return nil
		},
	}
	cmd.Flags().StringVar(&raw, "scores", "", "comma separated scores, e.g. 80,90,70,85,75,95")
	_ = cmd.MarkFlagRequired("scores")
	return cmd
}

func newWeightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "Print the component weights used for final grades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderWeights(cmd.OutOrStdout())
		},
	}
}

func renderWeights(w io.Writer) error {
	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignLeft, tw.AlignRight}},
		},
	}))
	table.Header("Component", "Weight")
	for _, component := range models.ScoreComponents {
		weight := strconv.FormatFloat(grading.Weight(component)*100, 'f', 0, 64) + "%"
		if err := table.Append(string(component), weight); err != nil {
			return err
		}
	}
	return table.Render()
}

// parseScores reads six comma separated values into a score set.
func parseScores(raw string) (models.ScoreSet, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != len(models.ScoreComponents) {
		return models.ScoreSet{}, fmt.Errorf("expected %d scores, got %d", len(models.ScoreComponents), len(parts))
	}
	values := make([]*float64, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return models.ScoreSet{}, fmt.Errorf("score %d: %w", i+1, err)
		}
		if math.IsNaN(v) || v < 0 || v > 100 {
			return models.ScoreSet{}, fmt.Errorf("score %d: %v is outside 0-100", i+1, v)
		}
		if !grading.WithinPrecision(v) {
			return models.ScoreSet{}, fmt.Errorf("score %d: %v has more than %d decimal places", i+1, v, grading.ScoreDecimals)
		}
		values[i] = &v
	}
	return models.ScoreSet{
		Assignment1: values[0],
		Assignment2: values[1],
		Quiz1:       values[2],
		Quiz2:       values[3],
		Midterm:     values[4],
		FinalExam:   values[5],
	}, nil
}

// renderRecap prints the ranked recap followed by the class statistics.
func renderRecap(w io.Writer, recap *models.ClassRecap) error {
	fmt.Fprintf(w, "%s (%s) semester %s %s\n", recap.Class.Name, recap.Class.Level, recap.Term.Semester, recap.Term.AcademicYear)

	headers := []any{"Rank", "NIS", "Name"}
	align := []tw.Align{tw.AlignRight, tw.AlignLeft, tw.AlignLeft}
	for _, subject := range recap.Subjects {
		headers = append(headers, subject.Code)
		align = append(align, tw.AlignRight)
	}
	headers = append(headers, "Average", "Predicate")
	align = append(align, tw.AlignRight, tw.AlignLeft)

	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{PerColumn: align},
		},
	}))
	table.Header(headers...)
	for _, row := range recap.Recap.Rows {
		line := []any{grading.FormatRank(row.Rank), row.Student.NIS, row.Student.FullName}
		for _, subject := range recap.Subjects {
			line = append(line, grading.FormatScore(row.Grades[subject.ID]))
		}
		line = append(line, grading.FormatScore(row.Average), row.Predicate)
		if err := table.Append(line...); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	stats := recap.Recap.Statistics
	dist := recap.Recap.Distribution
	fmt.Fprintf(w, "highest %s, lowest %s, mean %s, graded %d/%d (%d%%)\n",
		grading.FormatScore(stats.Highest), grading.FormatScore(stats.Lowest), grading.FormatScore(stats.Mean),
		stats.GradedStudents, stats.TotalStudents, stats.CompletionPercentage)
	fmt.Fprintf(w, "distribution: >=90 %d, 80-89 %d, 70-79 %d, 60-69 %d, <60 %d\n",
		dist.Excellent, dist.VeryGood, dist.Good, dist.Fair, dist.Poor)
	return nil
}
