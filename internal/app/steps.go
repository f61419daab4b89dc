package app

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/dshills/tapline/internal/hook"
)

// processAssets stages. Plugins pick a stage to run before or after the
// first-party steps.
const (
	StageAdditional            int64 = -2000
	StagePreProcess            int64 = -1000
	StageDerived               int64 = -200
	StageAdditions             int64 = -100
	StageNone                  int64 = 0
	StageOptimize              int64 = 100
	StageOptimizeCount         int64 = 200
	StageOptimizeCompatibility int64 = 300
	StageOptimizeSize          int64 = 400
	StageDevTooling            int64 = 500
	StageOptimizeInline        int64 = 700
	StageSummarize             int64 = 1000
	StageOptimizeHash          int64 = 2500
	StageOptimizeTransfer      int64 = 3000
	StageAnalyse               int64 = 4000
	StageReport                int64 = 5000
)

// InfoHash is the asset info key holding the content hash.
const InfoHash = "hash"

// Step is a first-party action run between processAssets segments.
type Step = hook.Step[*Assets]

// HashStep records an xxhash of every asset's content under InfoHash.
func HashStep() Step {
	return Step{
		Name:  "hash",
		Stage: hook.SafeStage(StageOptimizeHash),
		Run: func(assets *Assets) (*Assets, error) {
			for _, name := range assets.Names() {
				content, ok := assets.Get(name)
				if !ok {
					continue
				}
				assets.SetInfo(name, InfoHash, strconv.FormatUint(xxhash.Sum64String(content), 16))
			}
			return assets, nil
		},
	}
}

// CheckpointStep logs the asset names at stage.
func CheckpointStep(logger *slog.Logger, stage int64) Step {
	return Step{
		Name:  fmt.Sprintf("checkpoint@%d", stage),
		Stage: hook.SafeStage(stage),
		Run: func(assets *Assets) (*Assets, error) {
			logger.Debug("processAssets checkpoint",
				"stage", stage,
				"assets", assets.Names(),
			)
			return assets, nil
		},
	}
}

// buildStats summarizes assets for the done hooks.
func buildStats(session *Session, assets *Assets) *Stats {
	stats := &Stats{
		SessionID: session.ID,
		Inputs:    len(session.Inputs),
		Assets:    assets.Names(),
		Sizes:     make(map[string]int),
		Hashes:    make(map[string]string),
	}
	for _, name := range stats.Assets {
		content, _ := assets.Get(name)
		stats.Sizes[name] = len(content)
		if info := assets.Info(name); info != nil {
			if h, ok := info[InfoHash]; ok {
				stats.Hashes[name] = h
			}
		}
	}
	return stats
}
