package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// Supported report formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists the supported report formats
var Formats = []string{FormatJSON, FormatMarkdown, FormatHTML}

// ErrUnknownFormat is returned for an unsupported report format
var ErrUnknownFormat = errors.New("unknown report format")

func isFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Extension returns the file extension of a report format
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".json"
	}
}

// Generate builds the report and writes it to filename, or to stdout when
// filename is empty
func (g *ReportGenerator) Generate(in Input, filename string) (*models.PartitionReport, error) {
	report := g.BuildReport(in)
	if filename == "" {
		return report, g.Write(os.Stdout, report)
	}

	file, err := utils.SafeCreateFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", filename, err)
	}
	defer file.Close()

	if err := g.Write(file, report); err != nil {
		return nil, fmt.Errorf("failed to write report to %s: %w", filename, err)
	}
	g.logger.WithField("file", filename).Info("Partition report written")
	return report, nil
}

// Write renders the report in the generator's format
func (g *ReportGenerator) Write(w io.Writer, report *models.PartitionReport) error {
	switch g.format {
	case FormatMarkdown:
		_, err := io.WriteString(w, RenderMarkdown(report))
		return err
	case FormatHTML:
		return RenderHTML(w, report)
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
}

// RenderHTML converts the Markdown report to a standalone HTML page
func RenderHTML(w io.Writer, report *models.PartitionReport) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(report)), &body); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Partition report: %s</title>\n</head>\n<body>\n",
		report.ProgramInfo.Module); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

// WriteDOT writes the call graph in Graphviz format to filename
func WriteDOT(graph *callgraph.Graph, secure callgraph.Membership, filename string) error {
	file, err := utils.SafeCreateFile(filename)
	if err != nil {
		return fmt.Errorf("failed to create DOT file %s: %w", filename, err)
	}
	defer file.Close()

	if err := graph.WriteDOT(file, secure); err != nil {
		return fmt.Errorf("failed to write DOT file %s: %w", filename, err)
	}
	return nil
}
