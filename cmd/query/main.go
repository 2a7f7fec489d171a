// Command query reads the snapshot store. It lists stored disclosure
// dates for a security, or resolves target dates to the closest stored
// ones and prints those snapshots. With -start and -end it resolves
// both ends of a period, for comparing a distribution across time. It
// never touches the network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/GrahamLi/TDDC/internal/config"
	"github.com/GrahamLi/TDDC/internal/database"
	"github.com/GrahamLi/TDDC/internal/model"
	"github.com/GrahamLi/TDDC/internal/resolver"
	"github.com/GrahamLi/TDDC/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/crawler.yaml", "path to config file")
	code := flag.String("code", "", "security code (required)")
	dateFlag := flag.String("date", "", "target date (2006-01-02); omit to list stored dates")
	startFlag := flag.String("start", "", "period start date; with -end, resolves and prints both ends")
	endFlag := flag.String("end", "", "period end date")
	directionFlag := flag.String("direction", "nearest", "date resolution: nearest | on-or-before | on-or-after")
	tolerance := flag.Int("tolerance", 0, "max days between target and resolved date (0 = unbounded)")
	flag.Parse()

	if err := run(*configPath, *code, *dateFlag, *startFlag, *endFlag, *directionFlag, *tolerance); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func run(configPath, code, dateFlag, startFlag, endFlag, directionFlag string, tolerance int) error {
	if code == "" {
		return errors.New("-code is required")
	}
	if (startFlag == "") != (endFlag == "") {
		return errors.New("-start and -end must be given together")
	}
	security := model.SecurityID(code)

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return err
	}

	// Keep the store's operational logging off the query output.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	direction, err := resolver.ParseDirection(directionFlag)
	if err != nil {
		return err
	}
	r := resolver.New(st)

	switch {
	case startFlag != "":
		for _, raw := range []string{startFlag, endFlag} {
			if err := printResolved(ctx, st, r, security, raw, direction, tolerance); err != nil {
				return err
			}
		}
		return nil
	case dateFlag != "":
		return printResolved(ctx, st, r, security, dateFlag, direction, tolerance)
	default:
		return listDates(ctx, st, security)
	}
}

func printResolved(ctx context.Context, st store.Store, r *resolver.Resolver, security model.SecurityID, raw string, direction resolver.Direction, tolerance int) error {
	target, err := model.ParseDate(raw)
	if err != nil {
		return err
	}

	resolved, err := r.Resolve(ctx, security, target, direction, tolerance)
	if err != nil {
		return err
	}
	if resolved != target {
		fmt.Fprintf(os.Stderr, "note: no snapshot at %s, using %s (%s)\n", target, resolved, direction)
	}

	snapshot, err := st.Get(ctx, security, resolved)
	if err != nil {
		return err
	}
	return printSnapshot(os.Stdout, snapshot)
}

func openStore(ctx context.Context, cfg *config.CrawlerConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "fs":
		fs, err := store.NewFS(cfg.Store.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		pg, err := store.NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func listDates(ctx context.Context, st store.Store, security model.SecurityID) error {
	dates, err := st.ListDates(ctx, security)
	if err != nil {
		return err
	}
	if len(dates) == 0 {
		return fmt.Errorf("no snapshots stored for %s", security)
	}
	for _, d := range dates {
		fmt.Println(d)
	}
	return nil
}

func printSnapshot(w io.Writer, s *model.OwnershipSnapshot) error {
	fmt.Fprintf(w, "%s  %s  total shares %d\n\n", s.Security, s.Date, s.TotalShares)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "level\trange\tholders\tshares\tpct\t")
	for _, b := range s.Brackets {
		pct := float64(b.Shares) / float64(s.TotalShares) * 100
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.2f%%\t\n", b.Level, b.Label, b.Holders, b.Shares, pct)
	}
	return tw.Flush()
}
