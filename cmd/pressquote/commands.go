package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"

	"github.com/piwi3910/PressQuote/internal/config"
	"github.com/piwi3910/PressQuote/internal/costing"
	"github.com/piwi3910/PressQuote/internal/engine"
	"github.com/piwi3910/PressQuote/internal/model"
	"github.com/piwi3910/PressQuote/internal/project"
	"github.com/piwi3910/PressQuote/internal/rates"
	"github.com/piwi3910/PressQuote/internal/server"
	"github.com/piwi3910/PressQuote/internal/units"
)

func runServe(ctx context.Context, env *environment, _ []string) error {
	store, err := openStore(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	calc := costing.NewCalculator(store.provider, env.cfg.Pricing, env.logger)
	var opts []server.Option
	if store.ping != nil {
		opts = append(opts, server.WithReadiness(store.ping))
	}
	srv := server.New(env.cfg.Server.Addr, calc, env.logger, opts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		level.Error(env.logger).Log("msg", "shutting down HTTP server", "err", err)
		return err
	}
	level.Info(env.logger).Log("msg", "HTTP server gracefully stopped")
	return <-errc
}

func calcFlags(fs *pflag.FlagSet) {
	fs.String("out", "", "also write the breakdowns to this JSON file")
	fs.Bool("json", false, "print JSON instead of a table")
	fs.IntSlice("quantity", nil, "price these quantities instead of the job file's (up to 3)")
	fs.StringArray("override", nil, "override a line item on every breakdown, as item=amount (repeatable)")
}

func runCalc(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	job, err := project.LoadJob(args[0])
	if err != nil {
		return err
	}
	req := job.Request
	if env.fs.Changed("quantity") {
		req.Quantities, _ = env.fs.GetIntSlice("quantity")
	}
	overrides, err := parseOverrides(env.fs)
	if err != nil {
		return err
	}

	var provider rates.Provider
	if job.HasRates() {
		provider = rates.NewStaticProvider().Apply(job.Rates)
	} else {
		store, err := openStore(ctx, env.cfg, env.logger)
		if err != nil {
			return err
		}
		defer store.Close()
		provider = store.provider
	}

	calc := costing.NewCalculator(provider, env.cfg.Pricing, env.logger)
	breakdowns, err := calc.CalculateQuotes(ctx, req)
	if err != nil {
		return describeQuoteError(err)
	}
	for i := range breakdowns {
		for _, o := range overrides {
			if err := breakdowns[i].Override(o.item, o.amount); err != nil {
				return fmt.Errorf("override %s: %w", o.item, err)
			}
		}
	}

	if out, _ := env.fs.GetString("out"); out != "" {
		if err := project.ExportQuote(out, req, calc.Settings(), breakdowns); err != nil {
			return err
		}
	}
	if asJSON, _ := env.fs.GetBool("json"); asJSON {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(breakdowns)
	}
	printBreakdowns(env.stdout, req, breakdowns)
	return nil
}

type lineOverride struct {
	item   string
	amount float64
}

func parseOverrides(fs *pflag.FlagSet) ([]lineOverride, error) {
	raw, _ := fs.GetStringArray("override")
	out := make([]lineOverride, 0, len(raw))
	for _, r := range raw {
		item, value, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q, expected item=amount", r)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid override amount %q: %w", value, err)
		}
		out = append(out, lineOverride{item: strings.TrimSpace(item), amount: amount})
	}
	return out, nil
}

func describeQuoteError(err error) error {
	var verr *costing.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("job file is incomplete: %s: %s", verr.Field, verr.Message)
	case errors.Is(err, costing.ErrPlacementInfeasible):
		return fmt.Errorf("%w; pick a larger sheet or set job.manual_pieces_per_sheet", err)
	default:
		return err
	}
}

func printBreakdowns(w io.Writer, req model.QuoteRequest, breakdowns []costing.Breakdown) {
	paper := req.Paper
	fmt.Fprintf(w, "%s: %s × %s, %d colors on %s %ggsm (%s), sheet %s × %s\n",
		jobLabel(req.Job), req.Job.Size.Width, req.Job.Size.Height, req.Job.Colors,
		paper.Type, paper.GrammageGSM, paper.Supplier, paper.PressSheet().Width, paper.PressSheet().Height)

	for _, b := range breakdowns {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Quantity %d  [%s, %s]\n", b.Quantity, b.ID, b.State)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  ITEM\tAMOUNT\tSOURCE\tDETAIL")
		for _, item := range b.LineItems {
			amount := fmt.Sprintf("%.2f", item.Amount)
			if item.Overridden {
				amount += fmt.Sprintf(" (was %.2f)", item.OriginalAmount)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", item.Name, amount, item.RateSource, item.Explanation)
		}
		fmt.Fprintf(tw, "  base cost\t%.2f\t\t\n", b.BaseCost)
		fmt.Fprintf(tw, "  profit %g%%\t%.2f\t\t\n", b.ProfitMargin*100, b.Profit)
		fmt.Fprintf(tw, "  total\t%.2f\t\t\n", b.TotalCost)
		fmt.Fprintf(tw, "  unit cost\t%.4f\t\t\n", b.UnitCost)
		tw.Flush()

		orient := "portrait"
		if b.Placement.Rotated {
			orient = "rotated"
		}
		if b.PlacementOverridden {
			fmt.Fprintf(w, "  layout: %d per sheet (entered manually)\n", req.Job.ManualPiecesPerSheet)
		} else {
			fmt.Fprintf(w, "  layout: %d per sheet, %s, %d × %d, %.2f%% waste\n",
				b.Placement.PiecesPerSheet, orient, b.Placement.Cols, b.Placement.Rows, b.Placement.WastePercent)
		}
		u := b.Usage
		fmt.Fprintf(w, "  paper: %d sheets + %d wastage = %d; %d master sheets; %d reams + %d packs (%g reams, %.2f kg)\n",
			u.SheetsNeeded, u.WastageSheets, u.TotalSheetsWithWastage, u.MasterSheetsNeeded, u.FullReams, u.PacksNeeded, u.ReamsNeeded, b.PaperWeightKg)
		for _, warn := range b.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
}

func jobLabel(j model.JobSpec) string {
	if j.Name != "" {
		return j.Name
	}
	if j.ID != "" {
		return j.ID
	}
	return "job"
}

func layoutFlags(fs *pflag.FlagSet) {
	fs.StringArray("paper", nil, "press sheet in inches as WxH (repeatable; default: the standard sizes)")
	fs.String("job", "", "finished piece in centimeters as WxH")
	fs.String("rotation", "auto", "auto, portrait or rotated")
}

func runLayout(_ context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	jobFlag, _ := env.fs.GetString("job")
	if jobFlag == "" {
		return errUsage
	}
	jw, jh, err := parseSize(jobFlag)
	if err != nil {
		return fmt.Errorf("--job: %w", err)
	}
	job := model.JobSize{Width: units.Centimeter(jw), Height: units.Centimeter(jh)}

	rotFlag, _ := env.fs.GetString("rotation")
	var rot model.Rotation
	if err := rot.UnmarshalText([]byte(rotFlag)); err != nil {
		return fmt.Errorf("--rotation: %w", err)
	}

	candidates := engine.StandardPapers()
	if papers, _ := env.fs.GetStringArray("paper"); len(papers) > 0 {
		candidates = candidates[:0:0]
		for _, p := range papers {
			pw, ph, err := parseSize(p)
			if err != nil {
				return fmt.Errorf("--paper: %w", err)
			}
			candidates = append(candidates, engine.PaperCandidate{
				Name: p,
				Size: model.PaperSize{Width: units.Inch(pw), Height: units.Inch(ph)},
			})
		}
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PAPER\tPIECES\tORIENTATION\tGRID\tWASTE")
	for _, r := range engine.ComparePapers(job, rot, candidates) {
		p := r.Placement
		if !p.Fits() {
			fmt.Fprintf(tw, "%s\t0\t-\t-\tdoes not fit\n", r.Candidate.Name)
			continue
		}
		orient := "portrait"
		if p.Rotated {
			orient = "rotated"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d × %d\t%.2f%%\n", r.Candidate.Name, p.PiecesPerSheet, orient, p.Cols, p.Rows, p.WastePercent)
	}
	return tw.Flush()
}

// parseSize reads "WxH" with x, X or × as the separator.
func parseSize(s string) (float64, float64, error) {
	s = strings.NewReplacer("×", "x", "X", "x", " ", "").Replace(s)
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, expected WxH", s)
	}
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q: %w", ws, err)
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q, both sides must be positive", s)
	}
	return w, h, nil
}

func importFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "parse and report the sheet without writing it")
}

func runImportRates(ctx context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	rows, err := loadRateSheet(args[0], env.logger)
	if err != nil {
		return err
	}
	if dry, _ := env.fs.GetBool("dry-run"); dry {
		fmt.Fprintf(env.stdout, "%d rates parsed from %s, nothing written\n", len(rows), args[0])
		return nil
	}

	store, err := openStore(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.importRates(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "imported %d rates from %s into the %s store\n", n, args[0], env.cfg.Store.Kind)
	return nil
}

func runMigrate(ctx context.Context, env *environment, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if env.cfg.Store.Kind == config.StoreStatic {
		return fmt.Errorf("the %s store has no tables to migrate", env.cfg.Store.Kind)
	}
	store, err := openStore(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.version == nil {
		fmt.Fprintf(env.stdout, "%s rate store is up to date\n", env.cfg.Store.Kind)
		return nil
	}
	v, err := store.version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s rate store is at schema version %d\n", env.cfg.Store.Kind, v)
	return nil
}

func newJobFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "job name")
	fs.String("job", "", "finished piece in centimeters as WxH")
	fs.Int("colors", 4, "number of colors")
	fs.String("paper-type", "", "paper type, e.g. \"art card\"")
	fs.Float64("gsm", 0, "paper grammage")
	fs.String("supplier", "", "paper supplier")
	fs.String("paper", "25x36", "master sheet in inches as WxH")
	fs.IntSlice("quantity", []int{1000}, "quantities to price (up to 3)")
	fs.String("rates", "", "CSV or Excel rate sheet to embed in the job file")
	fs.Bool("force", false, "overwrite an existing file")
}

// runNewJob writes a starter job file that calc can price directly.
func runNewJob(_ context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	path := args[0]
	if force, _ := env.fs.GetBool("force"); !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}

	jobFlag, _ := env.fs.GetString("job")
	if jobFlag == "" {
		return errUsage
	}
	jw, jh, err := parseSize(jobFlag)
	if err != nil {
		return fmt.Errorf("--job: %w", err)
	}
	paperFlag, _ := env.fs.GetString("paper")
	pw, ph, err := parseSize(paperFlag)
	if err != nil {
		return fmt.Errorf("--paper: %w", err)
	}

	name, _ := env.fs.GetString("name")
	colors, _ := env.fs.GetInt("colors")
	req := model.QuoteRequest{
		Job:   model.NewJobSpec(name, units.Centimeter(jw), units.Centimeter(jh), colors),
		Paper: model.PaperSpec{Size: model.PaperSize{Width: units.Inch(pw), Height: units.Inch(ph)}},
	}
	req.Paper.Type, _ = env.fs.GetString("paper-type")
	req.Paper.GrammageGSM, _ = env.fs.GetFloat64("gsm")
	req.Paper.Supplier, _ = env.fs.GetString("supplier")
	req.Quantities, _ = env.fs.GetIntSlice("quantity")

	var rows []rates.RateRow
	if sheet, _ := env.fs.GetString("rates"); sheet != "" {
		if rows, err = loadRateSheet(sheet, env.logger); err != nil {
			return err
		}
	}

	if err := project.SaveJob(path, project.NewJobFile(req, rows)); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "wrote job %s to %s\n", req.Job.ID, path)
	if err := costing.Validate(req); err != nil {
		fmt.Fprintf(env.stdout, "fill in before pricing: %v\n", err)
	}
	return nil
}

func editQuoteFlags(fs *pflag.FlagSet) {
	fs.StringArray("override", nil, "override a line item on every breakdown, as item=amount (repeatable)")
	fs.StringArray("reset", nil, "restore a line item's computed amount (repeatable)")
	fs.String("out", "", "write the edited quote to this file (default: print only)")
	fs.Bool("json", false, "print JSON instead of a table")
}

// runEditQuote reloads a quote written by calc --out and edits its line items
// without pricing the job again.
func runEditQuote(_ context.Context, env *environment, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	exp, err := project.ImportQuote(args[0])
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(env.fs)
	if err != nil {
		return err
	}
	resets, _ := env.fs.GetStringArray("reset")

	for i := range exp.Breakdowns {
		for _, item := range resets {
			if err := exp.Breakdowns[i].Reset(strings.TrimSpace(item)); err != nil {
				return fmt.Errorf("reset %s: %w", item, err)
			}
		}
		for _, o := range overrides {
			if err := exp.Breakdowns[i].Override(o.item, o.amount); err != nil {
				return fmt.Errorf("override %s: %w", o.item, err)
			}
		}
	}

	if out, _ := env.fs.GetString("out"); out != "" {
		if err := project.ExportQuote(out, exp.Request, exp.Settings, exp.Breakdowns); err != nil {
			return err
		}
	}
	if asJSON, _ := env.fs.GetBool("json"); asJSON {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(exp.Breakdowns)
	}
	printBreakdowns(env.stdout, exp.Request, exp.Breakdowns)
	return nil
}
