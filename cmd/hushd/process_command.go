package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"hush/internal/config"
	"hush/internal/logging"
	"hush/internal/model"
	"hush/internal/pipeline"
	"hush/internal/visualize"
)

func newProcessCommand(configFlag *string) *cobra.Command {
	var outputPath string
	var renderSpecs bool

	cmd := &cobra.Command{
		Use:   "process <input.wav>",
		Short: "Denoise a single file without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			predictor, err := model.New(model.Options{
				Mode:    cfg.Model.Mode,
				Command: cfg.Model.Command,
			}, logger)
			if err != nil {
				return fmt.Errorf("resolve model: %w", err)
			}

			inputPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if outputPath == "" {
				base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
				outputPath = base + "_denoised.wav"
			}

			req := pipeline.Request{
				InputPath:  inputPath,
				OutputPath: outputPath,
			}
			if renderSpecs {
				base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
				req.InputSpecPath = base + "_input_spec.png"
				req.OutputSpecPath = base + "_output_spec.png"
			}

			pipe := pipeline.New(predictor, visualize.RenderSpectrogram, logger)
			result, err := pipe.Run(cmd.Context(), req, nil)
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), outputPath, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Denoised output path (default: <input>_denoised.wav)")
	cmd.Flags().BoolVar(&renderSpecs, "spectrograms", false, "Also render before/after spectrogram PNGs")
	return cmd
}

func printResult(out io.Writer, outputPath string, result *pipeline.Result) {
	rows := [][2]string{
		{"Output", outputPath},
		{"Duration", fmt.Sprintf("%.2f s", result.Duration)},
		{"Sample rate", fmt.Sprintf("%d Hz", result.SampleRate)},
		{"Noise reduction", fmt.Sprintf("%.2f dB", result.NoiseReductionDB)},
		{"Confidence", fmt.Sprintf("%.1f %%", result.ConfidenceScore)},
		{"Processing time", fmt.Sprintf("%.2f s", result.ProcessingTime)},
	}

	if isTerminal(out) {
		fmt.Fprintln(out, renderPairs("Metric", "Value", rows, true))
		return
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
