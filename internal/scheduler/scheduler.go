// Package scheduler implements the build driver (component H): turning an
// entry Source into object compile records, running them in parallel with
// incremental caching, linking, and returning the executable path.
// Grounded on original_source/base/compiler.py's Compiler.compile method,
// which this package's Build function follows step for step.
package scheduler

import (
	"fmt"
	"os"

	"github.com/tiny-make/tiny-make/internal/buildcache"
	"github.com/tiny-make/tiny-make/internal/common"
	"github.com/tiny-make/tiny-make/internal/compiler"
	"github.com/tiny-make/tiny-make/internal/config"
	"github.com/tiny-make/tiny-make/internal/depgraph"
	"github.com/tiny-make/tiny-make/internal/procexec"
)

// Build compiles entry and every source it depends on, links the result,
// and returns the path to the produced executable.
func Build(log *common.Logger, cache *buildcache.Cache, comp compiler.Compiler, cfg config.FileConfig, entry *depgraph.Source) (string, error) {
	allSources := append([]*depgraph.Source{entry}, depgraph.Sources(entry)...)

	objectRecords := make([]buildcache.Record, len(allSources))
	for i, src := range allSources {
		objectRecords[i] = comp.ObjectRecord(src, cfg)
	}

	var handles []*procexec.Handle
	for _, record := range objectRecords {
		if cache.HasFresh(record) {
			log.Info(0, fmt.Sprintf("up to date: %s", record.Target))
			continue
		}
		if err := common.MkdirForFile(record.Target); err != nil {
			return "", fmt.Errorf("create build directory for %q failed: %w", record.Target, err)
		}
		h, err := procexec.ForegroundSpawn(record.Argv)
		if err != nil {
			return "", err
		}
		handles = append(handles, h)
	}

	if err := procexec.WaitAll(handles); err != nil {
		return "", err
	}

	linkRecord := comp.LinkRecord(entry, cfg)
	if !cache.HasFresh(linkRecord) {
		log.Info(0, fmt.Sprintf("linking %s", linkRecord.Target))
		if err := common.MkdirForFile(linkRecord.Target); err != nil {
			return "", fmt.Errorf("create build directory for %q failed: %w", linkRecord.Target, err)
		}
		code, err := procexec.ForegroundExecute(linkRecord.Argv)
		if err != nil {
			return "", err
		}
		if code != 0 {
			return "", fmt.Errorf("link step failed with exit code %d", code)
		}
	} else {
		log.Info(0, fmt.Sprintf("up to date: %s", linkRecord.Target))
	}

	allRecords := append(objectRecords, linkRecord)
	if err := cache.Save(allRecords); err != nil {
		return "", err
	}

	if err := os.Chmod(linkRecord.Target, 0755); err != nil {
		return "", fmt.Errorf("chmod +x %q failed: %w", linkRecord.Target, err)
	}

	return linkRecord.Target, nil
}
