// Package pipeline chains collection, robots, terms and merge into one run.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/sw33tLie/spotscope/pkg/collector"
	"github.com/sw33tLie/spotscope/pkg/filter"
	"github.com/sw33tLie/spotscope/pkg/permission"
	"github.com/sw33tLie/spotscope/pkg/politeness"
	"github.com/sw33tLie/spotscope/pkg/robots"
	"github.com/sw33tLie/spotscope/pkg/tos"
	"github.com/sw33tLie/spotscope/pkg/workers"
)

// Config wires the stages of a run.
type Config struct {
	Keywords   []string
	Basename   string
	MaxResults int
	// Dir is the root of the artifact tree, the working directory when empty.
	Dir string
	// Filters replaces the collector's default keep words.
	Filters []string

	Searcher collector.Searcher
	// Filter runs between collection and the robots stage when set.
	Filter *filter.Filter
	Robots *robots.Evaluator
	Tos    *tos.Evaluator
	Pacer  *politeness.Pacer
	// Workers bounds concurrent rows in the robots and terms stages.
	Workers int
	Log     workers.Logger
}

// Paths are the artifacts of one run.
type Paths struct {
	URLs     string
	Filtered string
	Robots   string
	Tos      string
	Final    string
}

// PathsFor lays out the artifacts of basename under dir.
func PathsFor(dir, basename string) Paths {
	if dir == "" {
		dir = "."
	}
	return Paths{
		URLs:     filepath.Join(dir, "csv", basename+".csv"),
		Filtered: filepath.Join(dir, "csv", basename+"_filtered.csv"),
		Robots:   filepath.Join(dir, "robot_checked", basename+"_with_robots.csv"),
		Tos:      filepath.Join(dir, "document_checked", basename+"_with_tos.csv"),
		Final:    filepath.Join(dir, "final_checked", basename+"_final.csv"),
	}
}

// Run executes every stage in order and returns the path of the merged CSV.
func Run(ctx context.Context, cfg Config) (string, error) {
	if cfg.Searcher == nil || cfg.Robots == nil || cfg.Tos == nil {
		return "", errors.New("pipeline needs a searcher, a robots evaluator and a terms evaluator")
	}
	if cfg.Basename == "" {
		cfg.Basename = "tickets"
	}
	log := workers.OrNop(cfg.Log)
	p := PathsFor(cfg.Dir, cfg.Basename)

	log.Infof("Step 1: collecting URLs -> %s", p.URLs)
	urls, err := collector.Run(ctx, cfg.Searcher, cfg.Keywords, p.URLs, collector.Options{
		MaxResults: cfg.MaxResults,
		Filters:    cfg.Filters,
		Log:        cfg.Log,
	})
	if err != nil {
		return "", err
	}

	if cfg.Filter != nil {
		log.Infof("Step 1b: filtering URLs -> %s", p.Filtered)
		if urls, err = cfg.Filter.Run(ctx, urls, p.Filtered); err != nil {
			return "", err
		}
	}

	log.Infof("Step 2: checking robots.txt -> %s", p.Robots)
	robotsOut, err := robots.Annotate(ctx, cfg.Robots, urls, p.Robots, robots.AnnotateOptions{
		Pacer:   cfg.Pacer,
		Workers: cfg.Workers,
		Log:     cfg.Log,
	})
	if err != nil {
		return "", err
	}

	log.Infof("Step 3: checking terms of service -> %s", p.Tos)
	tosOut, err := tos.Annotate(ctx, cfg.Tos, robotsOut, p.Tos, tos.AnnotateOptions{
		Pacer:   cfg.Pacer,
		Workers: cfg.Workers,
		Log:     cfg.Log,
	})
	if err != nil {
		return "", err
	}

	log.Infof("Step 4: merging permissions -> %s", p.Final)
	final, err := permission.MergeFiles(robotsOut, tosOut, p.Final)
	if err != nil {
		return "", err
	}
	log.Infof("Pipeline finished: %s", final)
	return final, nil
}
