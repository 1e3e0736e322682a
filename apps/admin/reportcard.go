package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/services/export"
)

func (cli *commandLine) reportCardCmd() *cobra.Command {
	var file, xlsxOut string
	var termIDs []string

	cmd := &cobra.Command{
		Use:   "reportcard",
		Short: "Compute a student's report card from a YAML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap reportCardSnapshot
			if err := readSnapshot(file, &snap); err != nil {
				return err
			}
			view, err := snap.view(termIDs)
			if err != nil {
				return err
			}

			if xlsxOut != "" {
				if err = writeFile(xlsxOut, func(w io.Writer) error { return export.ReportCard(w, view) }); err != nil {
					return err
				}
			}
			return printReportCard(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (required)")
	cmd.Flags().StringArrayVarP(&termIDs, "term", "t", nil, "term id, repeat for several terms (in column order)")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the report card to this xlsx file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printReportCard(out io.Writer, v exam.ReportCardView) error {
	fmt.Fprintf(out, "%s (%s)\n\n", v.Student.Name, v.Student.AdmissionNumber)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"Subject"}
	for _, t := range v.Terms {
		header = append(header, t.Name)
	}
	header = append(header, "Total", "Result")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, row := range v.Card.Rows {
		cells := []string{row.SubjectName}
		for _, tr := range row.Terms {
			switch {
			case !tr.Scheduled:
				cells = append(cells, "-")
			case !tr.Graded:
				cells = append(cells, "N/A")
			default:
				cells = append(cells, fmt.Sprintf("%s/%s", formatMarks(tr.Obtained), formatMarks(tr.Max)))
			}
		}
		result := exam.ResultPass
		if !row.Passed {
			result = exam.ResultFail
		}
		cells = append(cells, fmt.Sprintf("%s/%s", formatMarks(row.RowObtained), formatMarks(row.RowMax)), result)
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "printing report card")
	}

	s := v.Card.Summary
	fmt.Fprintf(out, "\nGrand total: %s/%s\n", formatMarks(s.GrandTotalObtained), formatMarks(s.GrandTotalMax))
	fmt.Fprintf(out, "Percentage: %s%%\n", s.PercentageText)
	fmt.Fprintf(out, "Grade: %s\n", s.Grade)
	_, err := fmt.Fprintf(out, "Result: %s\n", s.Result)
	if err == nil && s.HasUngraded {
		_, err = fmt.Fprintln(out, "Some marks have not been entered yet.")
	}
	return err
}

func formatMarks(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}
