// Command report prints outage statistics for a station file without running
// the service. Feeder overrides and filters are given as flags, and the
// resulting totals can be published to a running dashboard's snapshot store.
//
// Usage:
//
//	go run ./cmd/report \
//	  -in data/stations.csv \
//	  -off F2 -off F7 \
//	  -q relay -affected -page-size 25 \
//	  -export out/stations.csv \
//	  -publish http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/snapshotapi"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/tabular"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/dashboard"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/observability"
)

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

type options struct {
	in         string
	off        multiFlag
	toggle     multiFlag
	needle     string
	affected   bool
	feeder     string
	page       int
	pageSize   int
	exportPath string
	publishURL string
	asJSON     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()

	var snapshots dashboard.SnapshotStore
	if opts.publishURL != "" {
		snapshots = snapshotapi.NewClient(strings.TrimRight(opts.publishURL, "/"), 10*time.Second, metrics, logger)
	}
	store := dashboard.NewStore(nil, snapshots, logger, metrics)

	summary, err := loadFile(store, opts.in)
	if err != nil {
		return err
	}
	for _, d := range summary.Dropped {
		log.Printf("row %d dropped: %s", d.Index, d.Reason)
	}

	// File overrides seed the map; each -off flag then forces its feeder OFF.
	for _, feeder := range opts.off {
		if !store.Overrides().Off(feeder) {
			store.ToggleFeeder(feeder)
		}
	}
	for _, id := range opts.toggle {
		if _, err := store.ToggleStation(id); err != nil {
			return err
		}
	}

	q := domain.Query{
		Needle:       opts.needle,
		AffectedOnly: opts.affected,
		Feeder:       opts.feeder,
		Page:         opts.page,
		PageSize:     opts.pageSize,
	}
	agg := store.Aggregate()
	page := store.View(q)

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Totals domain.Totals `json:"totals"`
			Page   domain.Page   `json:"page"`
		}{agg.Totals, page}); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else if err := writeReport(stdout, agg, page); err != nil {
		return err
	}

	if opts.exportPath != "" {
		if err := exportFile(store, opts.exportPath); err != nil {
			return err
		}
		log.Printf("exported %d stations to %s", len(store.Stations()), opts.exportPath)
	}

	if opts.publishURL != "" {
		snap, err := store.Publish(context.Background())
		if err != nil {
			return err
		}
		log.Printf("published snapshot: affected=%d total=%d pct=%.1f", snap.Affected, snap.Total, snap.Pct)
	}
	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.StringVar(&opts.in, "in", "", "station file (.csv, .json, .yaml)")
	fs.Var(&opts.off, "off", "force a feeder OFF (repeatable)")
	fs.Var(&opts.toggle, "toggle", "flip a station's outage flag by ID (repeatable)")
	fs.StringVar(&opts.needle, "q", "", "filter by station or feeder name")
	fs.BoolVar(&opts.affected, "affected", false, "only show affected stations")
	fs.StringVar(&opts.feeder, "feeder", domain.AllFeeders, "restrict to one feeder")
	fs.IntVar(&opts.page, "page", 1, "page number")
	fs.IntVar(&opts.pageSize, "page-size", domain.DefaultPageSize, "rows per page (0 = all)")
	fs.StringVar(&opts.exportPath, "export", "", "write the stations as CSV to this path")
	fs.StringVar(&opts.publishURL, "publish", "", "publish totals to the snapshot store at this base URL")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.in == "" {
		fs.Usage()
		return options{}, errors.New("missing required flag: -in")
	}
	return opts, nil
}

func loadFile(store *dashboard.Store, path string) (dashboard.ImportSummary, error) {
	format, err := tabular.FormatFromPath(path)
	if err != nil {
		return dashboard.ImportSummary{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return dashboard.ImportSummary{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return store.Load(f, format)
}

func exportFile(store *dashboard.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := store.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

func writeReport(w io.Writer, agg domain.Aggregation, page domain.Page) error {
	t := agg.Totals
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "consumers\taffected %d / %d (%.1f%%)\thealthy %d\n", t.Affected, t.Total, t.Pct, t.Healthy)
	fmt.Fprintf(tw, "stations\toff %d / %d (%.1f%%)\ton %d\n", t.SubsOff, t.SubsTotal, t.OffPct, t.SubsOn)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "FEEDER\tSTATE\tAFFECTED\tTOTAL\tPCT")
	for _, g := range agg.Feeders {
		state := "on"
		if g.Off {
			state = "OFF"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\n", g.Name, state, g.Affected, g.Total, g.Pct)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "rows %d-%d of %d (page %d/%d)\n", page.From, page.To, page.TotalRows, page.Page, page.PageCount)
	fmt.Fprintln(tw, "STATION\tFEEDER\tCONSUMERS\tOUT")
	for _, r := range page.Rows {
		out := ""
		if r.EffOut {
			out = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Name, r.Feeder, r.Consumers, out)
	}
	return tw.Flush()
}
