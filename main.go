package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/config"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/generator"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/output"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/version"
)

func main() {
	var (
		packagePath      = flag.String("package", ".", "Go package pattern or directory to partition")
		annotationFiles  = flag.String("annotations", "", "Comma-separated list of annotation files (JSON or YAML)")
		configFile       = flag.String("config", "", "Path to a TOML config file layered over the defaults")
		optimize         = flag.String("optimize", "", "Comma-separated optimization stages or presets (local, kl, ilp, all, callbacks); defaults to [pipeline] stages")
		algorithm        = flag.String("algo", "rta", "Call graph algorithm (rta, cha, static, vta)")
		format           = flag.String("format", output.FormatJSON, "Report format (json, markdown, html)")
		outputToFile     = flag.Bool("o", false, "Write the report to <module>.partition.<ext> instead of stdout")
		dotFile          = flag.String("dot", "", "Write the weighted call graph in Graphviz format to this file")
		rewriteCallbacks = flag.Bool("rewrite-callbacks", false, "Rewrite function-pointer parameters into cross-boundary handles")
		verbose          = flag.Bool("v", false, "Verbose output")
		showVersion      = flag.Bool("version", false, "Show version information and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersionString())
		os.Exit(0)
	}

	logger := utils.NewLogger(*verbose)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reportGen, err := output.NewReportGenerator(logger, *format)
	if err != nil {
		log.Fatalf("Invalid report format: %v", err)
	}

	in, err := generator.GeneratePartition(context.Background(), logger, generator.Options{
		Package:          *packagePath,
		Algorithm:        *algorithm,
		AnnotationFiles:  utils.ParseCommaDelimited(*annotationFiles),
		Stages:           utils.ParseCommaDelimited(*optimize),
		RewriteCallbacks: *rewriteCallbacks,
		Config:           cfg,
	})
	if err != nil {
		log.Fatalf("Partitioning failed: %v", err)
	}

	if *dotFile != "" {
		err = utils.NewInstrumentation(logger).TimedOperation("write-dot", func() error {
			return output.WriteDOT(in.Graph, in.Partitions.Secure, *dotFile)
		})
		if err != nil {
			log.Fatalf("Failed to write call graph: %v", err)
		}
	}

	var outputFilename string
	if *outputToFile {
		outputFilename, err = utils.GenerateOutputFilename(in.Module, *packagePath, output.Extension(reportGen.Format()))
		if err != nil {
			log.Fatalf("Failed to generate output filename: %v", err)
		}
	}

	report, err := reportGen.Generate(*in, outputFilename)
	if err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	if outputFilename != "" {
		output.WriteSummary(os.Stderr, report, isTerminal(os.Stderr))
		fmt.Fprintf(os.Stderr, "Partition report successfully written to: %s\n", outputFilename)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig()
	}
	return config.LoadFromFile(path)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
