package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelheap/imgproc/internal/batch"
	"github.com/pixelheap/imgproc/internal/domain"
	"github.com/pixelheap/imgproc/internal/fsutil"
	"github.com/pixelheap/imgproc/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output_dir>",
	Short: "Convert images between formats, optionally clearing a background color",
	Long: `Convert every matching image under a directory (or a single file) to the
output format named by --output-ext. With --remove-bg, pixels whose RGB
exactly matches the background color become fully transparent.

Both <input> and <output_dir> accept s3://bucket/prefix locations; the
object store endpoint and credentials come from the MINIO_* environment
variables.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("input-ext", cfg.Convert.InputExt, "Extension of input files to match when <input> is a directory")
	convertCmd.Flags().String("output-ext", cfg.Convert.OutputExt, "Extension and format of output files")
	convertCmd.Flags().Bool("remove-bg", false, "Rewrite background-color pixels as transparent")
	convertCmd.Flags().String("bg-color", "", "Background color to remove: R,G,B, #rrggbb or auto (default \"0,0,0\")")
	convertCmd.Flags().Float64("fuzz", 0, "Lab distance under which a pixel counts as background (0 = exact match)")
	convertCmd.Flags().Int("quality", cfg.Encoding.JPEGQuality, "JPEG quality (1-100)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputDir := args[1]
	inputExt, _ := cmd.Flags().GetString("input-ext")
	outputExt, _ := cmd.Flags().GetString("output-ext")
	removeBG, _ := cmd.Flags().GetBool("remove-bg")
	bgColor, _ := cmd.Flags().GetString("bg-color")
	fuzz, _ := cmd.Flags().GetFloat64("fuzz")
	quality, _ := cmd.Flags().GetInt("quality")

	op, err := buildConvertOp(outputExt, removeBG, bgColor, fuzz, quality)
	if err != nil {
		return err
	}

	runner, err := batch.NewRunner(logger, storeConfig(), verbose)
	if err != nil {
		return err
	}
	if verbose {
		logger.Printf("starting convert engine=%s run=%s", runner.EngineName(), runner.RunID())
	}

	sum, err := runner.Convert(cmd.Context(), batch.ConvertJob{
		InputPath: inputPath,
		OutputDir: outputDir,
		InputExt:  inputExt,
		Op:        op,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Converted %d of %d file(s) in %s\n", sum.Files-sum.Failed, sum.Files, sum.Elapsed.Round(time.Millisecond))
	fmt.Printf("Input:  %s (%d bytes)\n", inputPath, sum.InBytes)
	fmt.Printf("Output: %s (%d bytes)\n", outputDir, sum.OutBytes)

	return sum.Err()
}

// buildConvertOp validates the flag values and assembles the per-file
// operation. Argument problems surface here, before any file is touched.
func buildConvertOp(outputExt string, removeBG bool, bgColor string, fuzz float64, quality int) (domain.Op, error) {
	format, err := pipeline.NormalizeFormat(outputExt)
	if err != nil {
		return domain.Op{}, err
	}

	op := domain.Op{
		Kind:     domain.OpConvert,
		Format:   format,
		Ext:      fsutil.NormalizeExt(outputExt),
		Quality:  quality,
		RemoveBG: removeBG,
		Fuzz:     fuzz,
	}
	if fuzz < 0 {
		return domain.Op{}, fmt.Errorf("%w: fuzz must not be negative", domain.ErrInvalidOp)
	}

	// The color is validated whenever it is given, but only applied with
	// --remove-bg.
	switch {
	case strings.EqualFold(strings.TrimSpace(bgColor), "auto"):
		op.AutoKey = removeBG
	case strings.TrimSpace(bgColor) != "":
		key, err := domain.ParseColorKey(bgColor)
		if err != nil {
			return domain.Op{}, err
		}
		if removeBG {
			op.Key = &key
		}
	case removeBG:
		op.Key = &domain.ColorKey{} // zero value: black, the flag's documented default
	}

	return op, nil
}
