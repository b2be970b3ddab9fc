package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [name] [image]...",
	Short: "Enroll a person from one or more face images",
	Long: `Compute a face template from the given images and add the person to the gallery.

Every image should show only the person being enrolled. By default the whole
image is used as the face; pass --detect to crop the largest detected face
first. Templates of all images are averaged into one.

With --dataset, every subdirectory of the given directory is enrolled as one
person named after the directory ("jan-novak" becomes "jan novak").

Examples:
  face-attendance enroll "Jan Novák" jan1.jpg jan2.jpg --designation Engineer
  face-attendance enroll --dataset ./dataset --detect`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("designation", "", "Role or job title stored with the identity")
	enrollCmd.Flags().Bool("detect", false, "Crop the largest detected face instead of using the whole image")
	enrollCmd.Flags().String("dataset", "", "Enroll every subdirectory of this directory as one person")
	enrollCmd.Flags().Int("concurrency", constants.EnrollWorkers, "Number of images processed in parallel")
}

// enrollment is one person to add to the gallery
type enrollment struct {
	Name   string
	Images []string
}

// datasetPeople lists the subdirectories of dir that contain images.
func datasetPeople(dir string) ([]enrollment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset: %w", err)
	}
	var people []enrollment
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		src, err := camera.NewDirSource(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if src.Len() == 0 {
			continue
		}
		people = append(people, enrollment{
			Name:   database.NormalizePersonName(e.Name()),
			Images: src.Paths(),
		})
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// largestRegion returns the region with the biggest area.
func largestRegion(regions []facematch.FaceRegion) (facematch.FaceRegion, bool) {
	var best facematch.FaceRegion
	found := false
	for _, r := range regions {
		if !found || r.Width*r.Height > best.Width*best.Height {
			best, found = r, true
		}
	}
	return best, found
}

// templateFromFile computes the template of the face in one image.
// A nil locator uses the whole image as the face.
func templateFromFile(ctx context.Context, locator facematch.Locator, path string, faceSize int) ([]float32, error) {
	img, err := camera.DecodeFile(path)
	if err != nil {
		return nil, err
	}

	region := facematch.RegionFromRect(img.Bounds())
	if locator != nil {
		seq, err := locator.Locate(ctx, img)
		if err != nil {
			return nil, err
		}
		var regions []facematch.FaceRegion
		for r := range seq {
			regions = append(regions, r)
		}
		var ok bool
		if region, ok = largestRegion(regions); !ok {
			return nil, errors.New("no face detected")
		}
	}

	face, err := facematch.Normalize(img, region, faceSize)
	if err != nil {
		return nil, err
	}
	return facematch.ComputeTemplate(face)
}

// computeTemplates processes images concurrently and returns the templates
// that succeeded, in input order.
func computeTemplates(ctx context.Context, locator facematch.Locator, images []string, faceSize, concurrency int, bar *progressbar.ProgressBar) [][]float32 {
	results := make([][]float32, len(images))
	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, path := range images {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			template, err := templateFromFile(ctx, locator, path, faceSize)
			mu.Lock()
			if err != nil {
				bar.Clear()
				fmt.Printf("Skipping %s: %v\n", path, err)
			} else {
				results[i] = template
			}
			mu.Unlock()
			bar.Add(1)
		}()
	}
	wg.Wait()

	var templates [][]float32
	for _, t := range results {
		if t != nil {
			templates = append(templates, t)
		}
	}
	return templates
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	designation := mustGetString(cmd, "designation")
	detect := mustGetBool(cmd, "detect")
	datasetDir := mustGetString(cmd, "dataset")
	concurrency := mustGetInt(cmd, "concurrency")

	var people []enrollment
	switch {
	case datasetDir != "":
		if len(args) > 0 {
			return errors.New("--dataset cannot be combined with a name and images")
		}
		var err error
		if people, err = datasetPeople(datasetDir); err != nil {
			return err
		}
		if len(people) == 0 {
			return fmt.Errorf("no people found in %s", datasetDir)
		}
	case len(args) >= 2:
		people = []enrollment{{Name: database.CleanDisplayName(args[0]), Images: args[1:]}}
	default:
		return errors.New("expected a name and at least one image, or --dataset")
	}

	ctx := context.Background()
	_, closeStorage, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	gallery, err := database.GetGalleryWriter(ctx)
	if err != nil {
		return err
	}

	var locator facematch.Locator
	if detect {
		l, closeLocator, err := newLocator(cfg)
		if err != nil {
			return err
		}
		defer closeLocator()
		locator = l
	}

	total := 0
	for _, p := range people {
		total += len(p.Images)
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Computing templates"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var enrolled []database.Identity
	for _, p := range people {
		if p.Name == "" {
			return errors.New("name must not be empty")
		}
		templates := computeTemplates(ctx, locator, p.Images, cfg.Recognition.FaceSize, concurrency, bar)
		if len(templates) == 0 {
			fmt.Printf("\nNo usable images for %s, skipping\n", p.Name)
			continue
		}
		template, err := facematch.AverageTemplates(templates)
		if err != nil {
			return err
		}

		identity := &database.Identity{
			DisplayName: p.Name,
			Designation: designation,
			ImagePath:   p.Images[0],
			Template:    template,
		}
		if err := gallery.Enroll(ctx, identity); err != nil {
			return fmt.Errorf("failed to enroll %s: %w", p.Name, err)
		}
		enrolled = append(enrolled, *identity)
	}
	fmt.Println()

	for _, id := range enrolled {
		fmt.Printf("Enrolled %s with ID %d\n", id.DisplayName, id.ID)
	}
	count, _ := gallery.Count(ctx)
	fmt.Printf("Gallery now has %d identities\n", count)
	return nil
}
