package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ggufmerge/internal/logger"
	"github.com/samcharles93/ggufmerge/internal/merge"
)

// report is the document written by --report.
type report struct {
	*merge.Result
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

func mergeCmd() *cli.Command {
	var (
		outPath         string
		reportPath      string
		alignment       int64
		readConcurrency int64
		verify          bool
		removePartial   bool
	)

	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge split GGUF parts into one file",
		ArgsUsage: "PART... (or the -00001-of-N file of a split set)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path (default: derived from the first part)",
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write a JSON merge report to this path",
				Destination: &reportPath,
			},
			&cli.Int64Flag{
				Name:        "alignment",
				Usage:       "tensor alignment in bytes when the model declares none (power of two)",
				Value:       merge.DefaultAlignment,
				Destination: &alignment,
			},
			&cli.Int64Flag{
				Name:        "read-concurrency",
				Usage:       "number of part headers parsed concurrently",
				Value:       4,
				Destination: &readConcurrency,
			},
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "re-read the output and compare it with the parts",
				Destination: &verify,
			},
			&cli.BoolFlag{
				Name:        "remove-partial",
				Usage:       "remove the output when a merge fails",
				Destination: &removePartial,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyMergeConfig(cmd, appConfig, &alignment, &readConcurrency, &verify, &removePartial)

			if alignment <= 0 {
				return fmt.Errorf("merge: invalid --alignment %d", alignment)
			}
			parts, err := expandParts(cmd.Args().Slice())
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			out, defaulted, err := resolveMergeOut(parts[0], outPath, appConfig.OutDir)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			if defaulted {
				log.Info("output path not set, using default", "path", out)
			}

			res, err := merge.Merge(ctx, parts, out,
				merge.WithSink(merge.LogSink(log)),
				merge.WithAlignment(uint64(alignment)),
				merge.WithReadConcurrency(int(readConcurrency)),
				merge.WithRemovePartial(removePartial),
			)
			rep := report{Result: res}
			if err == nil && verify {
				log.Info("verifying output", "path", out)
				err = merge.Verify(ctx, out, parts)
				rep.Verified = err == nil
			}
			if err != nil {
				rep.Error = err.Error()
			}

			if reportPath != "" {
				if werr := writeReport(reportPath, rep); werr != nil {
					log.Error("failed to write report", "path", reportPath, "error", werr)
				}
			}
			if err != nil {
				return err
			}

			log.Info("merge complete",
				"output", out,
				"parts", len(parts),
				"tensors", len(res.Tensors),
				"bytes", res.MetaSize+res.DataSize,
			)
			return nil
		},
	}
}

func writeReport(path string, rep report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
