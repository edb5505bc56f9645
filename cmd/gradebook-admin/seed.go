package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-gradebook-api/internal/app"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
)

// seedFile is the JSON document accepted by the seed command.
type seedFile struct {
	Classes  []service.CreateClassRequest   `json:"classes"`
	Subjects []service.CreateSubjectRequest `json:"subjects"`
	Students []service.CreateStudentRequest `json:"students"`
	Grades   []service.UpsertGradeRequest   `json:"grades"`
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load classes, subjects, students and grades from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			seed, err := readSeed(f)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				return applySeed(cmd, a, seed)
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &seed, nil
}

func applySeed(cmd *cobra.Command, a *app.App, seed *seedFile) error {
	ctx := cmd.Context()
	for i, req := range seed.Classes {
		if _, err := a.Classes.Create(ctx, req); err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
	}
	for i, req := range seed.Subjects {
		if _, err := a.Subjects.Create(ctx, req); err != nil {
			return fmt.Errorf("subject %d: %w", i, err)
		}
	}
	for i, req := range seed.Students {
		if _, err := a.Students.Create(ctx, req); err != nil {
			return fmt.Errorf("student %d: %w", i, err)
		}
	}
	batch := a.Config.Gradebook.MaxBulkEntries
	for start := 0; start < len(seed.Grades); start += batch {
		end := min(start+batch, len(seed.Grades))
		if _, err := a.Grades.BulkUpsert(ctx, service.BulkGradesRequest{
			Mode:   service.BulkModeAtomic,
			Grades: seed.Grades[start:end],
		}); err != nil {
			return fmt.Errorf("grades %d-%d: %w", start, end-1, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d classes, %d subjects, %d students, %d grades\n",
		len(seed.Classes), len(seed.Subjects), len(seed.Students), len(seed.Grades))
	return nil
}

func writePDF(cmd *cobra.Command, a *app.App, query service.RecapQuery, path string) error {
	body, _, err := a.Recaps.ExportPDF(cmd.Context(), query)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
