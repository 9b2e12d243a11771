package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// CLI flags
var (
	configFlag         string
	baseURLFlag        string
	userFlag           string
	csrfTokenFlag      string
	hostFlag           string
	containerWidthFlag int
	logLevelFlag       string

	boxFlag      string
	moveFlag     string
	resizeFlag   string
	noCommitFlag bool
)

// rootCmd is the main Cobra command for the photo-onboard CLI.
var rootCmd = &cobra.Command{
	Use:   "photo-onboard",
	Short: "Upload and crop a profile photo",
	Long: `photo-onboard drives the profile photo workflow against a server:
validate a local image, upload it, choose a 5:7 crop box and commit it.

Crop adjustments are given in display pixels of the crop dialog, as a user
would drag them. Without adjustments the largest centered box is committed.

Examples:
  photo-onboard upload --user 42 me.jpg
  photo-onboard upload --user 42 --resize bottom-right:-80,-80 --move 10,0 me.jpg
  photo-onboard crop --user 42 --box 10,20,250,350
  photo-onboard preview notes.md`,
	SilenceUsage: true,
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload the first acceptable image and commit its crop",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Re-crop the photo already on the server",
	Args:  cobra.NoArgs,
	RunE:  runCrop,
}

var previewCmd = &cobra.Command{
	Use:   "preview [FILE]",
	Short: "Render markdown through the preview endpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPreview,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Path to config file (defaults plus environment when empty)")
	pf.StringVar(&baseURLFlag, "base-url", "", "Server base URL (overrides client.baseURL)")
	pf.StringVarP(&userFlag, "user", "u", "", "User id (overrides the host config)")
	pf.StringVar(&csrfTokenFlag, "csrf-token", "", "Anti-forgery token; fetched from the server when empty")
	pf.StringVar(&hostFlag, "host", "", "Host config JSON file; fetched from the server when empty")
	pf.IntVar(&containerWidthFlag, "container-width", 540, "Width of the crop dialog body in pixels")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level (overrides logging.level)")

	for _, cmd := range []*cobra.Command{uploadCmd, cropCmd} {
		cmd.Flags().StringVar(&boxFlag, "box", "", "Crop box x,y,width,height in image pixels")
		cmd.Flags().StringVar(&moveFlag, "move", "", "Drag the box by dx,dy")
		cmd.Flags().StringVar(&resizeFlag, "resize", "", "Drag a corner, e.g. bottom-right:-40,-40")
		cmd.Flags().BoolVar(&noCommitFlag, "no-commit", false, "Print the crop box without committing it")
	}

	rootCmd.AddCommand(uploadCmd, cropCmd, previewCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
