package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ggufmerge/internal/gguf"
)

var summaryKeys = []string{
	"general.name",
	"general.architecture",
	"general.quantization",
	"general.file_type",
	"general.alignment",
	"general.version",
	gguf.KeySplitCount,
	gguf.KeySplitNo,
	gguf.KeySplitTensors,
	"tokenizer.ggml.model",
}

type inspectKV struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type inspectTensor struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Dims   []uint64 `json:"dims"`
	Offset uint64   `json:"offset"`
	Size   uint64   `json:"size"`
}

type inspectDoc struct {
	Path       string          `json:"path"`
	Version    uint32          `json:"version"`
	Alignment  uint64          `json:"alignment"`
	DataOffset uint64          `json:"data_offset"`
	FileSize   int64           `json:"file_size"`
	KV         []inspectKV     `json:"kv,omitempty"`
	Tensors    []inspectTensor `json:"tensors,omitempty"`
	TensorsN   int             `json:"tensor_count"`
}

func inspectCmd(stdout io.Writer) *cli.Command {
	var (
		showKV     bool
		numTensors int64
		asJSON     bool
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the metadata of a GGUF file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "kv", Usage: "show all metadata key/values", Destination: &showKV},
			&cli.Int64Flag{
				Name:        "tensors",
				Usage:       "number of tensors to list (0 to skip, -1 for all)",
				Value:       20,
				Destination: &numTensors,
			},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("inspect: exactly one FILE is required")
			}
			p, err := gguf.Open(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			defer func() { _ = p.Close() }()

			n := int(numTensors)
			if n < 0 || n > len(p.Tensors) {
				n = len(p.Tensors)
			}
			if asJSON {
				return printInspectJSON(stdout, p, showKV, n)
			}
			printInspect(stdout, p, showKV, n)
			return nil
		},
	}
}

func printInspect(w io.Writer, p *gguf.Part, showKV bool, n int) {
	_, _ = fmt.Fprintf(w, "File: %s\n", p.Path)
	if name, ok := gguf.GetString(p.KV, "general.name"); ok {
		arch, _ := gguf.GetString(p.KV, gguf.KeyArchitecture)
		_, _ = fmt.Fprintf(w, "Model: %s (%s)\n", name, arch)
	}
	_, _ = fmt.Fprintf(w, "GGUF v%d | tensors=%d | kv=%d | alignment=%d | data_offset=%d\n",
		p.Version, len(p.Tensors), p.KV.Len(), p.Alignment, p.DataOffset)

	for _, k := range summaryKeys {
		if v, ok := p.KV.Get(k); ok {
			_, _ = fmt.Fprintf(w, "  %-36s %s\n", k+":", gguf.FormatValue(v))
		}
	}

	if showKV {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "All metadata:")
		for k, v := range p.KV.All() {
			_, _ = fmt.Fprintf(w, "  %s = %s\n", k, gguf.FormatValue(v))
		}
	}

	if n > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Tensors:")
		for _, t := range p.Tensors[:n] {
			_, _ = fmt.Fprintf(w, "  %-40s %-6s dims=%s off=%d\n",
				t.Name, t.Type.String(), formatDims(t.Dims), t.Offset)
		}
		if n < len(p.Tensors) {
			_, _ = fmt.Fprintf(w, "  ... (%d more)\n", len(p.Tensors)-n)
		}
	}
}

func printInspectJSON(w io.Writer, p *gguf.Part, showKV bool, n int) error {
	doc := inspectDoc{
		Path:       p.Path,
		Version:    p.Version,
		Alignment:  p.Alignment,
		DataOffset: p.DataOffset,
		FileSize:   p.Size,
		TensorsN:   len(p.Tensors),
	}
	for k, v := range p.KV.All() {
		if !showKV && !slices.Contains(summaryKeys, k) {
			continue
		}
		e := inspectKV{Key: k, Type: v.Type.String(), Value: v.Value}
		if arr, ok := v.Value.(gguf.ArrayValue); ok {
			e.Type = "array(" + arr.ElemType.String() + ")"
			e.Value = len(arr.Values)
		}
		doc.KV = append(doc.KV, e)
	}
	for _, t := range p.Tensors[:n] {
		size, _ := t.Size()
		doc.Tensors = append(doc.Tensors, inspectTensor{
			Name:   t.Name,
			Type:   t.Type.String(),
			Dims:   t.Dims,
			Offset: t.Offset,
			Size:   size,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(dims))
	for i, v := range dims {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, "x") + "]"
}
