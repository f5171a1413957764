package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image>",
	Short: "Enroll a person from a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnroll,
}

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <directory>",
	Short: "Enroll everyone from a directory of photos",
	Long: `Enroll every photo in a directory. File names carry the owner data as
<email>__<name>__<department>.<ext>, underscores in name and department
stand for spaces:

  jan.novak@school.cz__Jan_Novak__Computer_Science.jpg

Photos of already enrolled emails are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(enrollDirCmd)

	enrollCmd.Flags().String("name", "", "Full name")
	enrollCmd.Flags().String("email", "", "Email, must be unique")
	enrollCmd.Flags().String("department", "", "Department")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("email")
	_ = enrollCmd.MarkFlagRequired("department")

	enrollDirCmd.Flags().Int("concurrency", 4, "Number of photos enrolled in parallel")
}

func runEnroll(cmd *cobra.Command, args []string) error {
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

	res, err := a.svc.Enroll(ctx, service.EnrollRequest{
		Name:       mustGetString(cmd, "name"),
		Email:      mustGetString(cmd, "email"),
		Department: mustGetString(cmd, "department"),
		Image:      image,
	})
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s <%s>\n", res.Owner.Name, res.Owner.Email)
	fmt.Printf("  ID:         %s\n", res.Owner.ID)
	fmt.Printf("  Department: %s\n", res.Owner.Department)
	if res.FacesDetected > 1 {
		fmt.Printf("  Note: %d faces detected, the first one was enrolled\n", res.FacesDetected)
	}
	if res.CropPath != "" {
		fmt.Printf("  Face crop:  %s\n", res.CropPath)
	}
	return nil
}

// enrollFile is a photo whose name carries the owner data
type enrollFile struct {
	path       string
	email      string
	name       string
	department string
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// parseEnrollFileName splits <email>__<name>__<department>.<ext>.
func parseEnrollFileName(path string) (enrollFile, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if !slices.Contains(imageExtensions, ext) {
		return enrollFile{}, fmt.Errorf("%s: not an image", base)
	}

	parts := strings.Split(strings.TrimSuffix(base, filepath.Ext(base)), "__")
	if len(parts) != 3 {
		return enrollFile{}, fmt.Errorf("%s: expected <email>__<name>__<department>", base)
	}
	f := enrollFile{
		path:       path,
		email:      parts[0],
		name:       strings.ReplaceAll(parts[1], "_", " "),
		department: strings.ReplaceAll(parts[2], "_", " "),
	}
	if !strings.Contains(f.email, "@") || strings.TrimSpace(f.name) == "" || strings.TrimSpace(f.department) == "" {
		return enrollFile{}, fmt.Errorf("%s: expected <email>__<name>__<department>", base)
	}
	return f, nil
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	concurrency := max(1, mustGetInt(cmd, "concurrency"))

	entries, err := os.ReadDir(args[0])
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	var files []enrollFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := parseEnrollFileName(filepath.Join(args[0], e.Name()))
		if err != nil {
			fmt.Printf("Skipping %v\n", err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		fmt.Println("No photos to enroll.")
		return nil
	}

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("Photos to enroll: %d\n\n", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped int
	var failures []string
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, f := range files {
		wg.Add(1)
		go func(f enrollFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			err := enrollFromFile(ctx, a.svc, f)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				enrolled++
			case errors.Is(err, service.ErrDuplicateOwner):
				skipped++
			default:
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(f.path), err))
			}
		}(f)
	}
	wg.Wait()

	fmt.Printf("\n\nEnrolled: %d, already enrolled: %d, failed: %d\n", enrolled, skipped, len(failures))
	slices.Sort(failures)
	for _, f := range failures {
		fmt.Printf("  %s\n", f)
	}
	fmt.Printf("Descriptors stored: %d\n", a.store.Len())
	return nil
}

func enrollFromFile(ctx context.Context, svc *service.Service, f enrollFile) error {
	image, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	_, err = svc.Enroll(ctx, service.EnrollRequest{
		Name:       f.name,
		Email:      f.email,
		Department: f.department,
		Image:      image,
	})
	return err
}
