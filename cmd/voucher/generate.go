package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voucher-service/internal/core/voucher"
	"voucher-service/internal/domain"
)

var (
	templatePath  string
	outPath       string
	outFormat     string
	overrides     map[string]string
	logoPath      string
	logoPosition  string
	imagePath     string
	imagePosition string
)

var generateCmd = &cobra.Command{
	Use:   "generate <spreadsheet>",
	Short: "Render vouchers for every record of a spreadsheet",
	Long: `generate reads the spreadsheet, prints the run summary to stderr and
writes the rendered document. Without --template the built-in layout is used.

Formats:
  docx  one document, one voucher page per record (default)
  zip   one document per voucher, named after the voucher number
  json  the numbered records and run summary`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&templatePath, "template", "t", "", "Word template (.docx)")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: vouchers.<format> next to the spreadsheet)")
	generateCmd.Flags().StringVarP(&outFormat, "format", "f", "docx", "output format: docx, zip or json")
	generateCmd.Flags().StringToStringVar(&overrides, "override", nil, "pin a field to a column, e.g. --override subject=備考")
	generateCmd.Flags().StringVar(&logoPath, "logo", "", "image placed in the page header (png, jpeg or gif)")
	generateCmd.Flags().StringVar(&logoPosition, "logo-position", "right", "logo alignment: left or right")
	generateCmd.Flags().StringVar(&imagePath, "image", "", "image placed below every voucher (png, jpeg or gif)")
	generateCmd.Flags().StringVar(&imagePosition, "image-position", "center", "image alignment: left, center or right")
}

// readPicture loads an optional picture file.
func readPicture(path, position string) (*voucher.Picture, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read picture: %w", err)
	}
	return &voucher.Picture{Data: data, Position: position}, nil
}

func parseOverrides(raw map[string]string) (map[domain.CanonicalField]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	known := make(map[string]bool, len(domain.ResolutionOrder))
	for _, f := range domain.ResolutionOrder {
		known[string(f)] = true
	}
	out := make(map[domain.CanonicalField]string, len(raw))
	for name, column := range raw {
		if !known[name] {
			return nil, fmt.Errorf("unknown field %q in --override", name)
		}
		out[domain.CanonicalField(name)] = column
	}
	return out, nil
}

func runGenerate(cmd *cobra.Command, spreadsheet string) error {
	format := strings.ToLower(outFormat)
	if format != "docx" && format != "zip" && format != "json" {
		return fmt.Errorf("unsupported format %q", outFormat)
	}
	pins, err := parseOverrides(overrides)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(spreadsheet)
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var tpl []byte
	if templatePath != "" {
		if tpl, err = os.ReadFile(templatePath); err != nil {
			return fmt.Errorf("read template: %w", err)
		}
	}
	logo, err := readPicture(logoPath, logoPosition)
	if err != nil {
		return err
	}
	image, err := readPicture(imagePath, imagePosition)
	if err != nil {
		return err
	}

	res, err := newVoucherService(cfg, logger).Generate(cmd.Context(), voucher.GenerateInput{
		ExtractInput: voucher.ExtractInput{Spreadsheet: f, Filename: filepath.Base(spreadsheet), Overrides: pins},
		Template:     tpl,
		Logo:         logo,
		Image:        image,
		Archive:      format == "zip",
	})
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "zip":
		data = res.Archive
	case "json":
		if data, err = json.MarshalIndent(res, "", "  "); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	default:
		data = res.Document
	}

	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(spreadsheet), "vouchers."+format)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	s := res.Summary
	logger.Info("vouchers written",
		zap.String("file", outPath),
		zap.Int("records", s.Records),
		zap.Int("skipped", s.Skipped),
	)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d vouchers, %d rows skipped -> %s\n", s.Records, s.Skipped, outPath)
	for _, w := range s.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}
