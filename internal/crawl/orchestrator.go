package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"ckandump/internal/cache"
	"ckandump/internal/ckan"
	"ckandump/internal/download"
	"ckandump/internal/filter"
	"ckandump/internal/model"
	"ckandump/internal/progress"
)

// MetadataFileName is the snapshot written into every group and
// package directory.
const MetadataFileName = "metadata.json"

// Orchestrator drives the group → package → resource fan-out.
//
// Every level launches its children concurrently; the only global
// bound is the transport's connection cap, so a group with 500
// packages really does launch 500 package tasks. Branch failures are
// recorded in the run's Report, resource failures stay inside the
// downloader, and a run always finishes with whatever it could get.
type Orchestrator struct {
	client     *ckan.Client
	cache      *cache.Cache
	bucket     *blob.Bucket
	downloader *download.Downloader
	filter     *filter.Filter
	tracker    *progress.Tracker
	logger     *slog.Logger

	report *Report
}

// NewOrchestrator wires the pipeline together. tracker may be nil.
func NewOrchestrator(
	client *ckan.Client,
	metaCache *cache.Cache,
	bucket *blob.Bucket,
	downloader *download.Downloader,
	f *filter.Filter,
	tracker *progress.Tracker,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:     client,
		cache:      metaCache,
		bucket:     bucket,
		downloader: downloader,
		filter:     f,
		tracker:    tracker,
		logger:     logger.With("run", uuid.NewString()),
		report:     &Report{},
	}
}

// Report returns the branch errors collected so far.
func (o *Orchestrator) Report() *Report {
	return o.report
}

// DumpAll crawls every package in the catalog into the output root.
func (o *Orchestrator) DumpAll(ctx context.Context) error {
	ids, err := o.client.PackageList(ctx)
	if err != nil {
		return fmt.Errorf("list packages: %w", err)
	}

	o.logger.Info("dumping all packages", "count", len(ids))
	o.tracker.Emit(progress.LevelInfo, fmt.Sprintf("Found %d packages", len(ids)))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			o.dumpPackageBranch(gctx, id, "")
			return nil
		})
	}
	g.Wait()

	return ctx.Err()
}

// DumpGroups crawls the given groups concurrently.
func (o *Orchestrator) DumpGroups(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := o.DumpGroup(gctx, id); err != nil {
				o.report.Add("group", id, err)
				o.logger.Error("group failed", "group", id, "error", err)
				o.tracker.Emit(progress.LevelError, fmt.Sprintf("Group %s failed: %v", id, err))
			}
			return nil
		})
	}
	g.Wait()

	return ctx.Err()
}

// DumpGroup fetches one group's metadata and crawls all its packages
// into a directory named after the group. The group snapshot is
// written after every package branch has finished, whether or not
// some of them failed.
func (o *Orchestrator) DumpGroup(ctx context.Context, id string) error {
	raw, err := o.cache.GetOrFetch(ctx, id, func(ctx context.Context) ([]byte, error) {
		return o.client.GroupShow(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("fetch group %s: %w", id, err)
	}

	group, err := model.DecodeGroup(raw)
	if err != nil {
		return fmt.Errorf("group %s: %w", id, err)
	}

	dir := group.Dir("")
	o.logger.Info("dumping group", "group", id, "name", group.Name, "packages", len(group.Packages))
	o.tracker.Emit(progress.LevelInfo, fmt.Sprintf("Group %s: %d packages", group.Name, len(group.Packages)))

	g, gctx := errgroup.WithContext(ctx)
	for _, pkgID := range group.Packages {
		pkgID := pkgID
		g.Go(func() error {
			o.dumpPackageBranch(gctx, pkgID, dir)
			return nil
		})
	}
	g.Wait()

	if err := o.writeSnapshot(ctx, dir, raw); err != nil {
		return err
	}
	return ctx.Err()
}

// DumpPackage fetches one package's metadata, downloads its filtered
// resources concurrently and writes the package snapshot. The
// snapshot is written unconditionally: a package with failed
// downloads still documents what it was supposed to contain.
func (o *Orchestrator) DumpPackage(ctx context.Context, id, dir string) error {
	raw, err := o.cache.GetOrFetch(ctx, id, func(ctx context.Context) ([]byte, error) {
		return o.client.PackageShow(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("fetch package %s: %w", id, err)
	}

	pkg, err := model.DecodePackage(raw)
	if err != nil {
		return fmt.Errorf("package %s: %w", id, err)
	}

	destDir := pkg.Dir(dir)
	resources := o.filter.Apply(pkg.Resources)

	o.logger.Debug("dumping package",
		"package", id,
		"resources", len(pkg.Resources),
		"downloadable", len(resources),
		"dir", destDir,
	)

	// Downloads report through Outcome values, so this wait can
	// never fail; resource-level failures are already isolated.
	g, gctx := errgroup.WithContext(ctx)
	for _, res := range resources {
		res := res
		g.Go(func() error {
			o.downloader.Download(gctx, res, destDir)
			return nil
		})
	}
	g.Wait()

	if err := o.writeSnapshot(ctx, destDir, raw); err != nil {
		return err
	}

	o.tracker.PackageDone()
	return ctx.Err()
}

// dumpPackageBranch runs DumpPackage as an isolated branch: any error
// is recorded in the report instead of propagating.
func (o *Orchestrator) dumpPackageBranch(ctx context.Context, id, dir string) {
	if err := o.DumpPackage(ctx, id, dir); err != nil {
		o.report.Add("package", id, err)
		o.logger.Error("package failed", "package", id, "error", err)
		o.tracker.Emit(progress.LevelError, fmt.Sprintf("Package %s failed: %v", id, err))
	}
}

func (o *Orchestrator) writeSnapshot(ctx context.Context, dir string, raw []byte) error {
	key := path.Join(dir, MetadataFileName)
	if err := o.bucket.WriteAll(ctx, key, raw, nil); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
