package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/service"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize a person in a photo and mark attendance",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Int("period", 0, "Class period (1-5)")
	recognizeCmd.Flags().String("subject", "", "Subject of the period")
	_ = recognizeCmd.MarkFlagRequired("period")
	_ = recognizeCmd.MarkFlagRequired("subject")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.svc.Recognize(ctx, image, mustGetInt(cmd, "period"), mustGetString(cmd, "subject"))
	switch {
	case errors.Is(err, service.ErrNoFaceDetected):
		fmt.Println("No face detected.")
		return err
	case errors.Is(err, facematch.ErrNoMatch):
		fmt.Println("Face not recognized.")
		return err
	case err != nil:
		return fmt.Errorf("recognition failed: %w", err)
	}

	action := "updated"
	if rec.Created {
		action = "recorded"
	}
	fmt.Printf("Recognized %s (%s), distance %.4f\n", rec.Owner.Name, rec.Owner.Department, rec.Distance)
	fmt.Printf("Attendance %s: %s period %d, %s at %s\n", action, rec.Date, rec.Period, rec.Subject, rec.Timestamp)
	fmt.Printf("  Attendance ID: %s\n", rec.AttendanceID)
	return nil
}
