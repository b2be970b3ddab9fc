package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and manage enrolled identities",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

var galleryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryShow,
}

var galleryFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Find identities by name, ignoring case and diacritics",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryFind,
}

var galleryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an identity together with its attendance history",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryDelete,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd, galleryShowCmd, galleryFindCmd, galleryDeleteCmd)

	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
	galleryShowCmd.Flags().Bool("json", false, "Output as JSON")
	galleryFindCmd.Flags().Bool("json", false, "Output as JSON")
}

// identityView is the CLI representation of an identity, without its template
type identityView struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Designation string    `json:"designation,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toIdentityViews(identities []database.Identity) []identityView {
	views := make([]identityView, len(identities))
	for i, id := range identities {
		views[i] = identityView{
			ID:          id.ID,
			DisplayName: id.DisplayName,
			Designation: id.Designation,
			ImagePath:   id.ImagePath,
			CreatedAt:   id.CreatedAt,
		}
	}
	return views
}

// openGallery connects storage and returns the gallery writer.
func openGallery(ctx context.Context) (database.GalleryWriter, func(), error) {
	_, closeStorage, err := initStorage(config.Load())
	if err != nil {
		return nil, nil, err
	}
	gallery, err := database.GetGalleryWriter(ctx)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	return gallery, closeStorage, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid identity ID %q", arg)
	}
	return id, nil
}

func printIdentities(identities []database.Identity, asJSON bool) error {
	views := toIdentityViews(identities)
	if asJSON {
		return outputJSON(views)
	}
	if len(views) == 0 {
		fmt.Println("No identities found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESIGNATION\tENROLLED")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.ID, v.DisplayName, v.Designation, v.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	gallery, closeStorage, err := openGallery(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	identities, err := gallery.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	return printIdentities(identities, mustGetBool(cmd, "json"))
}

func runGalleryShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	gallery, closeStorage, err := openGallery(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	identity, err := gallery.Lookup(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get identity: %w", err)
	}
	if identity == nil {
		return fmt.Errorf("identity %d: %w", id, database.ErrNotFound)
	}
	view := toIdentityViews([]database.Identity{*identity})[0]
	if mustGetBool(cmd, "json") {
		return outputJSON(view)
	}
	fmt.Printf("ID:          %d\n", view.ID)
	fmt.Printf("Name:        %s\n", view.DisplayName)
	fmt.Printf("Designation: %s\n", view.Designation)
	fmt.Printf("Image:       %s\n", view.ImagePath)
	fmt.Printf("Enrolled:    %s\n", view.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Template:    %d values\n", len(identity.Template))
	return nil
}

func runGalleryFind(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	gallery, closeStorage, err := openGallery(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	identities, err := gallery.FindByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to search identities: %w", err)
	}
	return printIdentities(identities, mustGetBool(cmd, "json"))
}

func runGalleryDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	gallery, closeStorage, err := openGallery(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	if err := gallery.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("identity %d does not exist", id)
		}
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	fmt.Printf("Deleted identity %d\n", id)
	fmt.Println("A running service picks up the change on its next gallery reload")
	return nil
}
