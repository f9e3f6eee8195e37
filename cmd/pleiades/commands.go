package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"pleiades-api/internal/gazetteer"
	"pleiades-api/internal/index"
	"pleiades-api/internal/logger"
)

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "Resolve place identifiers to canonical URIs",
	ArgsUsage: "PID...",
	Action:    runResolve,
}

var getCommand = cli.Command{
	Name:      "get",
	Usage:     "Fetch place records as JSON",
	ArgsUsage: "PID...",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "reload", Usage: "bypass the response cache"},
	},
	Action: runGet,
}

var lookupCommand = cli.Command{
	Name:      "lookup",
	Usage:     "Load places, then look up terms in an index",
	ArgsUsage: "TERM...",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "load, l", Usage: "comma separated place identifiers to load first"},
		cli.StringFlag{Name: "index, i", Value: gazetteer.TitlesIndex, Usage: "index name"},
		cli.StringFlag{Name: "selector, s", Usage: "add an index over this selector (names, placeTypes, geohash, s2cell); named after the selector unless --index is given"},
		cli.StringFlag{Name: "op", Value: string(index.OpAnd), Usage: "and | or"},
	},
	Action: runLookup,
}

var suggestCommand = cli.Command{
	Name:      "suggest",
	Usage:     "Load places, then list index terms close to TERM",
	ArgsUsage: "TERM",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "load, l", Usage: "comma separated place identifiers to load first"},
		cli.StringFlag{Name: "index, i", Value: gazetteer.TitlesIndex, Usage: "index name"},
		cli.StringFlag{Name: "selector, s", Usage: "selector for a non-default index"},
		cli.IntFlag{Name: "dist, d", Value: 2, Usage: "maximum edit distance"},
	},
	Action: runSuggest,
}

var searchCommand = cli.Command{
	Name:      "search",
	Usage:     "Search published places on the gazetteer site",
	ArgsUsage: "[TEXT...]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "title, t", Usage: "match the place title"},
		cli.StringFlag{Name: "description", Usage: "match the place description"},
		cli.StringSliceFlag{Name: "type", Usage: "feature type (repeatable)"},
		cli.StringSliceFlag{Name: "tag", Usage: "subject tag (repeatable)"},
		cli.StringFlag{Name: "tag-op", Value: string(index.OpOr), Usage: "and | or, combines --tag values"},
	},
	Action: runSearch,
}

// openGazetteer 按 配置文件 → 环境变量 → 命令行参数 的顺序合并配置
func openGazetteer(ctx *cli.Context) (*gazetteer.Gazetteer, error) {
	cfg := &gazetteer.Config{}
	if path := ctx.GlobalString("config"); path != "" {
		c, err := gazetteer.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if v := ctx.GlobalString("user-agent"); v != "" {
		cfg.UserAgent = v
	}
	if v := ctx.GlobalString("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := ctx.GlobalString("from"); v != "" {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers["From"] = v
	}
	if ctx.GlobalBool("no-cache") {
		empty := ""
		cfg.CacheDir = &empty
	}
	if sel := ctx.String("selector"); sel != "" {
		name, err := indexName(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Indexes = append(cfg.Indexes, gazetteer.IndexConfig{Name: name, Selector: sel})
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return gazetteer.New(append(opts, gazetteer.WithLogger(logger.L()))...)
}

// indexName：带 --selector 而未指定 --index 时，附加索引以选择器命名；显式指定默认索引名则直接拒绝
func indexName(ctx *cli.Context) (string, error) {
	name := ctx.String("index")
	sel := strings.TrimSpace(ctx.String("selector"))
	if sel == "" {
		return name, nil
	}
	if !ctx.IsSet("index") {
		return sel, nil
	}
	if name == gazetteer.TitlesIndex {
		return "", errors.Errorf("%s: --selector needs an --index name other than %q", ctx.Command.Name, gazetteer.TitlesIndex)
	}
	return name, nil
}

func runResolve(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("resolve: at least one PID is required", 2)
	}
	g, err := openGazetteer(ctx)
	if err != nil {
		return err
	}
	for _, pid := range ctx.Args() {
		uri, err := g.Resolve(context.Background(), pid)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "%s\t%s\n", pid, uri)
	}
	return nil
}

func runGet(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("get: at least one PID is required", 2)
	}
	g, err := openGazetteer(ctx)
	if err != nil {
		return err
	}
	for _, pid := range ctx.Args() {
		p, err := g.GetPlace(context.Background(), pid, ctx.Bool("reload"))
		if err != nil {
			return err
		}
		if err := printJSON(ctx.App.Writer, p); err != nil {
			return err
		}
	}
	return nil
}

func runLookup(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("lookup: at least one TERM is required", 2)
	}
	op, err := index.ParseOperator(strings.ToLower(ctx.String("op")))
	if err != nil {
		return err
	}
	g, err := openGazetteer(ctx)
	if err != nil {
		return err
	}
	if err := load(g, ctx.String("load")); err != nil {
		return err
	}
	name, err := indexName(ctx)
	if err != nil {
		return err
	}
	uris, err := g.Lookup(name, ctx.Args(), op)
	if err != nil {
		return err
	}
	for _, u := range uris {
		fmt.Fprintln(ctx.App.Writer, u)
	}
	return nil
}

func runSuggest(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("suggest: exactly one TERM is required", 2)
	}
	g, err := openGazetteer(ctx)
	if err != nil {
		return err
	}
	if err := load(g, ctx.String("load")); err != nil {
		return err
	}
	name, err := indexName(ctx)
	if err != nil {
		return err
	}
	terms, err := g.Suggest(name, ctx.Args().First(), ctx.Int("dist"))
	if err != nil {
		return err
	}
	for _, t := range terms {
		fmt.Fprintln(ctx.App.Writer, t)
	}
	return nil
}

func runSearch(ctx *cli.Context) error {
	op, err := index.ParseOperator(strings.ToLower(ctx.String("tag-op")))
	if err != nil {
		return err
	}
	q := gazetteer.Query{
		Text:         strings.Join(ctx.Args(), " "),
		Title:        ctx.String("title"),
		Description:  ctx.String("description"),
		FeatureTypes: ctx.StringSlice("type"),
		Tags:         ctx.StringSlice("tag"),
		TagOperator:  op,
	}
	g, err := openGazetteer(ctx)
	if err != nil {
		return err
	}
	hits, err := g.Search(context.Background(), q)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Fprintf(ctx.App.Writer, "%s\t%s\n", h.URI, h.Title)
	}
	return nil
}

func load(g *gazetteer.Gazetteer, list string) error {
	for _, pid := range strings.Split(list, ",") {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			continue
		}
		if _, err := g.GetPlace(context.Background(), pid, false); err != nil {
			return errors.Wrapf(err, "load %s", pid)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
