package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"wine-trade-pipeline/internal/config"
	"wine-trade-pipeline/internal/model"
	"wine-trade-pipeline/internal/pipeline"
	"wine-trade-pipeline/internal/store"
	"wine-trade-pipeline/pkg/utils"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "run the pipeline over one or more export tables",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "TOML run file",
		},
		&cli.StringSliceFlag{
			Name:  "source",
			Usage: "export table to load (csv or xlsx), may be repeated",
		},
		&cli.IntFlag{
			Name:  "window",
			Usage: "number of most recent years to keep",
		},
		&cli.StringFlag{
			Name:  "out",
			Value: "output",
			Usage: "base directory for run outputs",
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "sqlite run log path",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "sources loaded in parallel",
		},
		&cli.StringFlag{
			Name:  "timeout",
			Usage: "job timeout, e.g. 5m",
		},
		&cli.BoolFlag{
			Name:  "no-charts",
			Usage: "skip chart rendering",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "log every stage",
		},
	},
	Action: runPipeline,
}

var countriesCommand = &cli.Command{
	Name:  "countries",
	Usage: "print the country name lookup table",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "extra",
			Usage: "csv of additional name,canonical mappings",
		},
	},
	Action: printCountries,
}

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "list the runs recorded in a sqlite run log",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Usage:    "sqlite run log path",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "errors",
			Usage: "print the recorded errors of every run",
		},
	},
	Action: listRuns,
}

func jsonOutput(path string, in any) error {
	j, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, j, 0o644)
}

// applyFlags overrides the run file with command line flags
func applyFlags(c *cli.Context, spec *model.PipelineJobSpec) {
	for _, path := range c.StringSlice("source") {
		base := filepath.Base(path)
		spec.Sources = append(spec.Sources, model.Source{
			Name: strings.TrimSuffix(base, filepath.Ext(base)),
			Path: path,
		})
	}
	if c.IsSet("window") {
		spec.WindowYears = c.Int("window")
	}
	if c.IsSet("db") {
		if spec.Export == nil {
			spec.Export = &model.Export{}
		}
		spec.Export.DB = c.String("db")
	}
	if c.IsSet("workers") {
		spec.Concurrency.Workers = c.Int("workers")
	}
	if c.IsSet("timeout") {
		spec.Concurrency.JobTimeout = c.String("timeout")
	}
	if c.Bool("no-charts") {
		spec.Charts = nil
	}
	if c.Bool("verbose") {
		spec.Logging = true
	}
}

// resolveOutputs places relative output paths inside the run directory
func resolveOutputs(om *utils.OutputManager, runID string, spec *model.PipelineJobSpec) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}
	if spec.Export != nil && spec.Export.File != "" && !filepath.IsAbs(spec.Export.File) {
		if spec.Export.File, err = om.GetOutputFilePath(runID, spec.Export.File); err != nil {
			return "", err
		}
	}
	if spec.Charts != nil && !filepath.IsAbs(spec.Charts.Dir) {
		spec.Charts.Dir = filepath.Join(runDir, spec.Charts.Dir)
	}
	return runDir, nil
}

func runPipeline(c *cli.Context) error {
	spec, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, spec)
	if err := config.Validate(spec); err != nil {
		return fmt.Errorf("invalid run spec: %w", err)
	}

	runID := uuid.New().String()
	om := utils.NewOutputManager(c.String("out"))
	runDir, err := resolveOutputs(om, runID, spec)
	if err != nil {
		return err
	}

	if spec.Export != nil && spec.Export.DB != "" {
		if err := store.InitDB(spec.Export.DB); err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		defer store.Close()
	}

	result, runErr := pipeline.Run(c.Context, runID, *spec)
	if result != nil {
		metricsPath := filepath.Join(runDir, "run_metrics.json")
		if err := jsonOutput(metricsPath, result.Metrics); err != nil {
			log.Printf("⚠️ failed to write run metrics: %v", err)
		}
		for _, sr := range result.Sources {
			if sr.Err != nil {
				fmt.Printf("❌ %s: %v\n", sr.Source.Name, sr.Err)
				continue
			}
			fmt.Printf("✅ %s: %d countries, %d charts\n", sr.Source.Name, sr.CountryTotals.Len(), len(sr.Charts))
		}
		fmt.Printf("📁 Outputs in %s\n", runDir)
	}
	return runErr
}

func printCountries(c *cli.Context) error {
	names := pipeline.CanonicalCountryNames()
	if path := c.String("extra"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		extra, err := pipeline.LoadCountryNames(f)
		if err != nil {
			return err
		}
		names = pipeline.MergeCountryNames(names, extra)
	}

	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCANONICAL")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, names[k])
	}
	return w.Flush()
}

func listRuns(c *cli.Context) error {
	path := c.String("db")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("run log: %w", err)
	}
	if err := store.InitDB(path); err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return errors.New("no runs recorded")
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTAGES\tERRORS\tCREATED\tUPDATED")
	failures := make(map[string][]string, len(runs))
	for _, r := range runs {
		stages, err := store.CountStages(r.ID)
		if err != nil {
			return err
		}
		if failures[r.ID], err = store.GetRunErrors(r.ID); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.ID, r.Status, stages, len(failures[r.ID]),
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if c.Bool("errors") {
		for _, r := range runs {
			for _, msg := range failures[r.ID] {
				fmt.Fprintf(c.App.Writer, "❌ %s: %s\n", r.ID, msg)
			}
		}
	}
	return nil
}
