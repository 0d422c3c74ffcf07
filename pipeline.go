package main

import (
	"fmt"
	"time"

	"github.com/rpcpool/splicegen/blockhash"
	"github.com/rpcpool/splicegen/blockindex"
	"github.com/rpcpool/splicegen/config"
	"github.com/rpcpool/splicegen/extent"
	"github.com/rpcpool/splicegen/metadata"
	"github.com/rpcpool/splicegen/plan"
	"github.com/rpcpool/splicegen/progress"
	"github.com/rpcpool/splicegen/source"
	"k8s.io/klog/v2"
)

// discoveryResult is the output of running the full core pipeline (index the
// image, discover extents per file, build the plan) shared by the generate
// and reconstruct commands.
type discoveryResult struct {
	Plan  plan.Plan
	Metas map[string]metadata.Record
}

// runDiscovery indexes the image, discovers extents in each extracted file,
// and builds the reconstruction plan. The caller owns image and must keep it
// open until it is done with the result (the plan does not copy image
// bytes).
func runDiscovery(image *source.FileSequence, paths []string, cfg config.Config, metaOpts metadata.Options, sink progress.Sink, extentSink extent.Sink) (discoveryResult, error) {
	sink.Notify(progress.Event{Kind: progress.HashingImage})

	if err := image.Advise(source.Sequential); err != nil {
		klog.V(2).Infof("advise sequential on image failed (non-fatal): %s", err)
	}

	idx, err := blockindex.Build(func(fn func(blockhash.Record) error) error {
		_, err := blockhash.Stream(image.Reader(), int(cfg.BlockSize), fn)
		return err
	})
	if err != nil {
		return discoveryResult{}, fmt.Errorf("hashing image: %w", err)
	}
	metrics_imageIndexEntries.Set(float64(idx.Len()))

	if err := image.Advise(source.Random); err != nil {
		klog.V(2).Infof("advise random on image failed (non-fatal): %s", err)
	}

	var allExtents []extent.Extent
	metas := make(map[string]metadata.Record, len(paths))

	for _, p := range paths {
		sink.Notify(progress.Event{Kind: progress.HashingFile, Path: p})

		rec, err := metadata.Collect(p, metaOpts)
		if err != nil {
			return discoveryResult{}, err
		}
		metas[p] = rec

		file, err := source.Open(p)
		if err != nil {
			return discoveryResult{}, err
		}

		if file.Len() != rec.Size {
			size := file.Len()
			file.Close()
			return discoveryResult{}, fmt.Errorf("%s: size changed between listing (%d bytes) and read (%d bytes): %w", p, rec.Size, size, source.ErrSizeMismatch)
		}

		hashes, _, err := blockhash.Collect(file.Reader(), int(cfg.BlockSize))
		if err != nil {
			file.Close()
			return discoveryResult{}, fmt.Errorf("hashing %s: %w", p, err)
		}

		if err := file.Advise(source.Random); err != nil {
			klog.V(2).Infof("advise random on %s failed (non-fatal): %s", p, err)
		}

		sink.Notify(progress.Event{Kind: progress.MatchingFile, Path: p})
		startedAt := time.Now()
		found, err := extent.Discover(p, file, image, hashes, idx, cfg, extentSink)
		metrics_discoveryDurationHistogram.WithLabelValues(p).Observe(time.Since(startedAt).Seconds())
		file.Close()
		if err != nil {
			return discoveryResult{}, fmt.Errorf("discovering extents in %s: %w", p, err)
		}

		metrics_extentsDiscovered.WithLabelValues(p).Add(float64(len(found)))
		metrics_filesProcessed.Inc()
		allExtents = append(allExtents, found...)
	}

	sink.Notify(progress.Event{Kind: progress.BuildingPlan})
	built, err := plan.Build(image.Len(), allExtents)
	if err != nil {
		return discoveryResult{}, fmt.Errorf("building plan: %w", err)
	}

	for _, seg := range built.Segments {
		switch seg.Kind {
		case plan.Literal:
			metrics_bytesBySegmentKind.WithLabelValues("literal").Add(float64(seg.Length))
		case plan.Copy:
			metrics_bytesBySegmentKind.WithLabelValues("copy").Add(float64(seg.Length))
		}
	}

	return discoveryResult{Plan: built, Metas: metas}, nil
}

// sinksFor returns the progress and extent sinks appropriate for the
// current verbosity setting.
func sinksFor() (progress.Sink, extent.Sink) {
	if IsVerbose {
		k := progress.NewKlogSink()
		return k, k
	}
	return progress.NopSink, progress.Nop{}
}

// explainPipelineErr prefixes err with a diagnosis of which of spec.md §7's
// error kinds it carries, the way the teacher's call sites branch on
// IsNotFound before propagating. All kinds remain fatal here (the core
// never attempts a partial plan); this only makes the cause legible.
func explainPipelineErr(cmd string, err error) error {
	switch {
	case err == nil:
		return nil
	case source.IsNotFound(err):
		return fmt.Errorf("%s: an input file is missing: %w", cmd, err)
	case source.IsSizeMismatch(err):
		return fmt.Errorf("%s: an extracted file changed size during the run: %w", cmd, err)
	case config.IsInvalid(err):
		return fmt.Errorf("%s: invalid configuration: %w", cmd, err)
	default:
		return fmt.Errorf("%s: %w", cmd, err)
	}
}
