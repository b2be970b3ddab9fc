package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/faceservice"
)

// dlibLocator is set by locator_dlib.go when built with the dlib tag.
var dlibLocator func(modelsDir string) (facematch.Locator, func(), error)

// newLocator builds the locator selected by FACE_LOCATOR. The returned
// function releases its resources.
func newLocator(cfg *config.Config) (facematch.Locator, func(), error) {
	switch cfg.Recognition.Locator {
	case "service":
		client := faceservice.NewClient(cfg.FaceService.URL)
		fmt.Printf("Locating faces with face service at %s\n", client.BaseURL())
		return faceservice.NewLocator(client, cfg.Camera.MaxFrameSize, cfg.FaceService.MinScore), func() {}, nil
	case "full":
		fmt.Println("Treating every frame as a single face")
		return facematch.WholeFrame, func() {}, nil
	case "static":
		loc, err := facematch.ParseStaticLocator(cfg.Recognition.StaticRegions)
		if err != nil {
			return nil, nil, &config.ConfigurationError{Field: "FACE_STATIC_REGIONS", Reason: err.Error()}
		}
		fmt.Printf("Using %d fixed face region(s) for every frame\n", len(loc.Detections))
		return loc, func() {}, nil
	case "dlib":
		if dlibLocator == nil {
			return nil, nil, &config.ConfigurationError{
				Field:  "FACE_LOCATOR",
				Reason: "dlib support is not compiled in (build with -tags dlib)",
			}
		}
		fmt.Printf("Locating faces with dlib models from %s\n", cfg.Recognition.ModelsDir)
		return dlibLocator(cfg.Recognition.ModelsDir)
	default:
		return nil, nil, &config.ConfigurationError{
			Field:  "FACE_LOCATOR",
			Reason: fmt.Sprintf("unknown locator %q", cfg.Recognition.Locator),
		}
	}
}
