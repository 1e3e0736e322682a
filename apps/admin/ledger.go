package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/services/export"
)

func (cli *commandLine) ledgerCmd() *cobra.Command {
	var file, xlsxOut string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Compute a student's fee status from a YAML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap ledgerSnapshot
			if err := readSnapshot(file, &snap); err != nil {
				return err
			}
			stmt := snap.statement()

			if xlsxOut != "" {
				if err := writeFile(xlsxOut, func(w io.Writer) error { return export.FeeStatement(w, stmt) }); err != nil {
					return err
				}
			}
			return printStatement(cmd.OutOrStdout(), stmt)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (required)")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the statement to this xlsx file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printStatement(out io.Writer, stmt fee.Statement) error {
	fmt.Fprintf(out, "%s (%s)\n\n", stmt.Student.Name, stmt.Student.AdmissionNumber)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Fee head\tPayable\tPaid\tDiscount\tFine\tDue\tOverpaid\t")
	for _, l := range stmt.Lines {
		name := l.FeeHeadName
		if l.Retired {
			name += " (retired)"
		}
		overpaid := ""
		if l.Overpaid {
			overpaid = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", name,
			l.TotalPayable.StringFixed(2), l.TotalPaid.StringFixed(2), l.TotalDiscount.StringFixed(2),
			l.TotalFine.StringFixed(2), l.Due.StringFixed(2), overpaid)
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "printing statement")
	}

	if _, err := fmt.Fprintf(out, "\nTotal due: %s\n", stmt.Totals.Due.StringFixed(2)); err != nil {
		return err
	}
	if stmt.Totals.Overpaid {
		_, err := fmt.Fprintln(out, "Some fee heads are overpaid; their due is shown as 0.00.")
		return err
	}
	return nil
}

func writeFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
