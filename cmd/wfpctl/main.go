// Command wfpctl inspects an exported policy-engine snapshot: it loads the
// snapshot into an in-memory engine, opens a management session against it
// and lists or shows the stored objects.
//
// Usage:
//
//	wfpctl -snapshot policy.toml providers
//	wfpctl -snapshot policy.toml layers
//	wfpctl -snapshot policy.toml filters [-layer KEY] [-provider KEY] [-action MASK]
//	wfpctl -snapshot policy.toml filter KEY
//
// Settings may also come from the environment: WFPCTL_SNAPSHOT,
// WFPCTL_LOG_LEVEL, WFPCTL_PAGE_SIZE.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/wfpkit/wfpkit/fwpm"
	"github.com/wfpkit/wfpkit/fwpm/memengine"
)

type config struct {
	Snapshot string `envconfig:"SNAPSHOT"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	PageSize int    `envconfig:"PAGE_SIZE" default:"1000"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wfpctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := envconfig.Process("wfpctl", &cfg); err != nil {
		return err
	}

	snapshot := flag.String("snapshot", cfg.Snapshot, "path to a TOML policy snapshot")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level (trace..error)")
	layerKey := flag.String("layer", "", "filters: restrict to one layer key")
	providerKey := flag.String("provider", "", "filters: restrict to one provider key")
	actionMask := flag.Uint("action", 0, "filters: restrict to actions matching this mask")
	flag.Parse()

	if *snapshot == "" {
		return fmt.Errorf("no snapshot given (use -snapshot or WFPCTL_SNAPSHOT)")
	}
	if flag.NArg() < 1 {
		return fmt.Errorf("no command given (providers|layers|sublayers|callouts|filters|filter)")
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", *logLevel, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	engine, err := memengine.LoadSnapshot(*snapshot)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sess, err := fwpm.Open(ctx, &fwpm.SessionOptions{
		Transport: engine,
		PageSize:  cfg.PageSize,
		Logger:    &log,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch cmd := flag.Arg(0); cmd {
	case "providers":
		providers, err := sess.EnumerateProviders(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KEY\tNAME\tSERVICE")
		for _, p := range providers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Name, p.ServiceName)
		}

	case "layers":
		layers, err := sess.EnumerateLayers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KEY\tID\tNAME")
		for _, l := range layers {
			fmt.Fprintf(w, "%s\t%d\t%s\n", l.Key, l.ID, l.Name)
		}

	case "sublayers":
		subLayers, err := sess.EnumerateSubLayers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KEY\tWEIGHT\tNAME")
		for _, sl := range subLayers {
			fmt.Fprintf(w, "%s\t%d\t%s\n", sl.Key, sl.Weight, sl.Name)
		}

	case "callouts":
		callouts, err := sess.EnumerateCallouts(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KEY\tID\tLAYER\tNAME")
		for _, co := range callouts {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", co.Key, co.ID, co.ApplicableLayer, co.Name)
		}

	case "filters":
		template, err := filterTemplate(*layerKey, *providerKey, uint32(*actionMask))
		if err != nil {
			return err
		}
		filters, err := sess.EnumerateFilters(ctx, template)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "KEY\tID\tACTION\tWEIGHT\tNAME")
		for _, f := range filters {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", f.Key, f.ID, f.Action, f.Weight, f.Name)
		}

	case "filter":
		if flag.NArg() < 2 {
			return fmt.Errorf("filter: missing key")
		}
		key, err := uuid.Parse(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("filter: bad key %q: %w", flag.Arg(1), err)
		}
		f, err := sess.GetFilter(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "key\t%s\n", f.Key)
		fmt.Fprintf(w, "id\t%d\n", f.ID)
		fmt.Fprintf(w, "name\t%s\n", f.Name)
		fmt.Fprintf(w, "description\t%s\n", f.Description)
		fmt.Fprintf(w, "layer\t%s\n", f.LayerKey)
		fmt.Fprintf(w, "sublayer\t%s\n", f.SubLayerKey)
		if f.ProviderKey != nil {
			fmt.Fprintf(w, "provider\t%s\n", f.ProviderKey)
		}
		fmt.Fprintf(w, "action\t%s\n", f.Action)
		fmt.Fprintf(w, "weight\t%d\n", f.Weight)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

// filterTemplate builds an enumeration template from the CLI flags, or nil
// when no flag narrows the enumeration.
func filterTemplate(layer, provider string, action uint32) (*fwpm.FilterEnumTemplate, error) {
	if layer == "" && provider == "" && action == 0 {
		return nil, nil
	}
	t := &fwpm.FilterEnumTemplate{ActionMask: action}
	if layer != "" {
		key, err := uuid.Parse(layer)
		if err != nil {
			return nil, fmt.Errorf("bad layer key %q: %w", layer, err)
		}
		t.LayerKey = key
	}
	if provider != "" {
		key, err := uuid.Parse(provider)
		if err != nil {
			return nil, fmt.Errorf("bad provider key %q: %w", provider, err)
		}
		t.ProviderKey = key
	}
	return t, nil
}
