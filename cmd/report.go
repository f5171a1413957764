package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the monthly attendance report",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("month", "", "Month to report (YYYY-MM)")
	reportCmd.Flags().String("department", "", "Only include this department")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
	_ = reportCmd.MarkFlagRequired("month")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.svc.MonthlyReport(ctx, mustGetString(cmd, "month"), mustGetString(cmd, "department"))
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Attendance report %s, department: %s\n", report.Month, report.Department)
	fmt.Printf("School days: %d, classes per person: %d\n\n", report.SchoolDays, report.TotalClasses)

	if len(report.Rows) == 0 {
		fmt.Println("No people enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEPARTMENT\tATTENDED\tTOTAL\tPERCENT")
	fmt.Fprintln(w, "----\t----------\t--------\t-----\t-------")
	for _, row := range report.Rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f%%\n",
			row.Name, row.Department, row.ClassesAttended, row.TotalClasses, row.AttendancePercentage)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d people\n", len(report.Rows))
	return nil
}
