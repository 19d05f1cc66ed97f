package main

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"

	"github.com/pixelheap/imgproc/internal/palette"
	"github.com/pixelheap/imgproc/internal/pipeline"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <file>",
	Short: "Inspect image dimensions, channel statistics and dominant colors",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func init() {
	identifyCmd.Flags().Int("colors", 0, "Extract a dominant palette of this many colors")
	identifyCmd.Flags().String("method", "dominantcolor", "Palette method (dominantcolor, kmeans)")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	path := args[0]
	colors, _ := cmd.Flags().GetInt("colors")
	methodValue, _ := cmd.Flags().GetString("method")

	method, err := palette.ParseMethod(methodValue)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := pipeline.Inspect(data)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", path)
	fmt.Fprintf(out, "Format:      %s\n", info.Format)
	fmt.Fprintf(out, "Dimensions:  %d x %d (%.2f MP)\n", info.Width, info.Height, info.Megapixels)
	fmt.Fprintf(out, "Alpha:       %v\n", info.HasAlpha)
	fmt.Fprintf(out, "File size:   %d bytes (%.1f KB)\n", len(data), float64(len(data))/1024)
	fmt.Fprintf(out, "Mean RGB:    %.1f %.1f %.1f\n", info.Channels.MeanR, info.Channels.MeanG, info.Channels.MeanB)
	fmt.Fprintf(out, "Stddev RGB:  %.1f %.1f %.1f\n", info.Channels.StdR, info.Channels.StdG, info.Channels.StdB)
	fmt.Fprintf(out, "Mean luma:   %.1f\n", info.Channels.MeanLuma)

	if colors > 0 {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		pal := palette.Extract(img, colors, method)
		// Darkest first; kmeans cluster order varies from run to run.
		palette.SortByBrightness(pal)
		fmt.Fprintf(out, "Palette (%s):\n", method)
		for i, c := range pal {
			r, g, b := c.RGB255()
			fmt.Fprintf(out, "  %2d. %s  rgb(%d,%d,%d)\n", i+1, c.Hex(), r, g, b)
		}
	}

	return nil
}
