package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/zoeyai/featmatch/pkg/vision"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "featmatch %s\n", vision.Version)
		fmt.Fprintf(out, "  Build Time: %s\n", vision.BuildTime)
		fmt.Fprintf(out, "  Git Commit: %s\n", vision.GitCommit)
		fmt.Fprintf(out, "  OpenCV:     %s (gocv %s)\n", gocv.OpenCVVersion(), gocv.Version())
		fmt.Fprintf(out, "  SURF:       %v\n", vision.SURFAvailable())
		fmt.Fprintf(out, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
