package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bodul/crossword-export/xword"
)

var errInvalidPuzzle = errors.New("puzzle is invalid")

func newValidateCmd(app *cli) *cobra.Command {
	var (
		asJSON bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a puzzle and print its numbering",
		Long: `validate reads a puzzle (editor JSON or ipuz, "-" for stdin) and reports
every problem at once. With --format it also checks that the puzzle can be
written in that format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPuzzle(cmd, args[0])
			if err != nil {
				return reportInvalid(cmd, err)
			}

			if format != "" {
				f, err := xword.ParseFormat(format)
				if err != nil {
					return err
				}
				if _, err := xword.Export(p, f); err != nil {
					return err
				}
			}

			n := p.Numbering()
			app.log.Debug("puzzle valid", zap.String("file", args[0]), zap.Bool("rebus", p.HasRebus()))
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), n)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid %d×%d puzzle: %d across, %d down\n",
				p.Width(), p.Height(), len(n.Across), len(n.Down))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the numbering as JSON")
	cmd.Flags().StringVarP(&format, "format", "f", "", "also check that the puzzle exports to this format")
	return cmd
}

func newExportCmd(app *cli) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write a puzzle as .puz or ipuz",
		Long: fmt.Sprintf(`export validates a puzzle (editor JSON or ipuz) and writes it in one of
the formats %s. Aliases: puz, puz2, ipuz.

The output defaults to FILE with the format's extension; "-" writes to stdout.`,
			formatList()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := app.cfg.Format()
			if format != "" {
				var err error
				if f, err = xword.ParseFormat(format); err != nil {
					return err
				}
			}

			p, err := loadPuzzle(cmd, args[0])
			if err != nil {
				return reportInvalid(cmd, err)
			}
			output, err := xword.Export(p, f)
			if err != nil {
				return err
			}

			dest := out
			if dest == "" {
				dest = defaultOutput(args[0], f)
			}
			if dest != "-" && filepath.Clean(dest) == filepath.Clean(args[0]) {
				return fmt.Errorf("refusing to overwrite input %s; pass --out", args[0])
			}
			if err := writeOutput(cmd, dest, output.Data); err != nil {
				return err
			}
			app.log.Info("puzzle exported",
				zap.String("format", string(f)),
				zap.String("out", dest),
				zap.Int("bytes", len(output.Data)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output path, "-" for stdout`)
	return cmd
}

func newImportCmd(app *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "import FILE.ipuz",
		Short: "Convert an ipuz document to editor JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := xword.DecodeIPuz(data)
			if err != nil {
				return reportInvalid(cmd, err)
			}

			var buf bytes.Buffer
			if err := writeJSONTo(&buf, p.Raw()); err != nil {
				return err
			}
			app.log.Debug("ipuz imported", zap.String("file", args[0]))
			return writeOutput(cmd, out, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", `output path, "-" for stdout`)
	return cmd
}

func newInspectCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE.puz",
		Short: "Verify the checksums of a .puz file and print its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			info, err := xword.VerifyPuz(data)
			if err != nil {
				return err
			}
			app.log.Debug("puz verified", zap.String("file", args[0]), zap.String("version", info.Version))
			return writeJSONTo(cmd.OutOrStdout(), info)
		},
	}
}

// loadPuzzle reads editor JSON or an ipuz document and validates it.
func loadPuzzle(cmd *cobra.Command, path string) (*xword.Puzzle, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	if isIPuz(path, data) {
		return xword.DecodeIPuz(data)
	}

	var raw xword.RawPuzzle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return xword.Validate(raw)
}

func isIPuz(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".ipuz") {
		return true
	}
	var head struct {
		Version string `json:"version"`
	}
	return json.Unmarshal(data, &head) == nil && strings.HasPrefix(head.Version, "http://ipuz.org/")
}

// reportInvalid prints field errors one per line and returns
// errInvalidPuzzle; other errors pass through.
func reportInvalid(cmd *cobra.Command, err error) error {
	var fe xword.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}
	w := cmd.ErrOrStderr()
	for _, field := range fe.Fields() {
		fmt.Fprintf(w, "  %s: %s\n", field, fe[field])
	}
	return errInvalidPuzzle
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func defaultOutput(input string, f xword.Format) string {
	if input == "-" {
		return "-"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + f.Extension()
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatList() string {
	names := make([]string, 0, len(xword.Formats()))
	for _, f := range xword.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
