package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type AppFlags struct {
	GlobalConfigFile string
	Once             bool
	AddURL           string
	ImportFile       string
	AddName          string
	Interval         time.Duration
	ExportSiteID     string
	ExportDir        string
}

func ParseFlags() AppFlags {
	globalConfigFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("c", "", "Alias for -config")

	once := flag.Bool("once", false, "Crawl every due site once, wait for the jobs to finish and exit.")

	addURL := flag.String("add", "", "Register a site to monitor and exit.")
	addName := flag.String("name", "", "Display name for the site registered with -add.")
	importFile := flag.String("import", "", "Register every URL listed in a text file (one per line) and exit.")
	importFileAlias := flag.String("i", "", "Alias for -import")
	interval := flag.Duration("interval", 15*time.Minute, "Crawl interval for sites registered with -add or -import.")

	exportSiteID := flag.String("export", "", "Export the snapshot history of a site to parquet and exit.")
	exportDir := flag.String("export-dir", "", "Directory for -export output (defaults to storage_config.export_base_path).")
	exportDirAlias := flag.String("o", "", "Alias for -export-dir")

	flag.Parse()

	flags := AppFlags{
		Once:         *once,
		AddURL:       *addURL,
		AddName:      *addName,
		Interval:     *interval,
		ExportSiteID: *exportSiteID,
	}

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	if *importFile != "" {
		flags.ImportFile = *importFile
	} else if *importFileAlias != "" {
		flags.ImportFile = *importFileAlias
	}

	if *exportDir != "" {
		flags.ExportDir = *exportDir
	} else if *exportDirAlias != "" {
		flags.ExportDir = *exportDirAlias
	}

	modes := 0
	for _, set := range []bool{flags.Once, flags.AddURL != "", flags.ImportFile != "", flags.ExportSiteID != ""} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		fmt.Fprintln(os.Stderr, "[FATAL] only one of -once, -add, -import or -export may be given")
		os.Exit(1)
	}

	return flags
}
