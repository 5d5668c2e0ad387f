package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/stretchr/testify/assert"
)

func TestListOptimizableTablesSkipsTablesWithoutOverhead(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_posts", Engine: "InnoDB", SizeBytes: 4096, DataFree: 1024},
			{Name: "wp_options", Engine: "InnoDB", SizeBytes: 2048, DataFree: 0},
		},
	}
	svc := NewOptimizerService(statsRepo, &fakeTablesRepository{})

	infos, err := svc.ListOptimizableTables(context.Background())

	assert.NoError(t, err)
	assert.Len(t, infos, 1)
	assert.Equal(t, "wp_posts", infos[0].Name)
	assert.Equal(t, int64(1024), infos[0].Overhead)
}

func TestOptimizeAllTablesBranchesVerbOnEngine(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_posts", Engine: "InnoDB", SizeBytes: 4096},
			{Name: "wp_legacy", Engine: "MyISAM", SizeBytes: 2048},
			{Name: "wp_cache", Engine: "MEMORY", SizeBytes: 1024},
			{Name: "wp_export", Engine: "CSV", SizeBytes: 512},
		},
	}
	tablesRepo := &fakeTablesRepository{}
	svc := NewOptimizerService(statsRepo, tablesRepo)

	result, err := svc.OptimizeAllTables(context.Background(), nil)

	assert.NoError(t, err)
	assert.Equal(t, 4, result.Optimized)
	assert.Equal(t, []string{"wp_posts", "wp_legacy"}, tablesRepo.optimized)
	assert.Equal(t, []string{"wp_cache", "wp_export"}, tablesRepo.analyzed)
}

func TestOptimizeAllTablesReadsSizesInTwoBatches(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_posts", Engine: "InnoDB", SizeBytes: 4096},
			{Name: "wp_comments", Engine: "InnoDB", SizeBytes: 2048},
			{Name: "wp_options", Engine: "InnoDB", SizeBytes: 1024},
		},
		afterSizes: map[string]int64{
			"wp_posts":    3000,
			"wp_comments": 2048,
			"wp_options":  1000,
		},
	}
	svc := NewOptimizerService(statsRepo, &fakeTablesRepository{})

	result, err := svc.OptimizeAllTables(context.Background(), nil)

	assert.NoError(t, err)
	// Sizes come from the listing and one batched re-read, never
	// from per-table lookups.
	assert.Equal(t, 0, statsRepo.tableInfoCalls)
	assert.Equal(t, 1, statsRepo.batchSizeCalls)
	assert.Equal(t, int64(1096+24), result.BytesSaved)
	assert.Equal(t, int64(3000), result.Tables[0].SizeAfter)
	assert.Equal(t, int64(1096), result.Tables[0].BytesSaved)
}

func TestOptimizeAllTablesContinuesAfterFailure(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_posts", Engine: "InnoDB", SizeBytes: 4096},
			{Name: "wp_broken", Engine: "InnoDB", SizeBytes: 2048},
			{Name: "wp_options", Engine: "InnoDB", SizeBytes: 1024},
		},
	}
	tablesRepo := &fakeTablesRepository{
		optimizeErr: map[string]error{"wp_broken": errors.New("table is locked")},
	}
	svc := NewOptimizerService(statsRepo, tablesRepo)

	result, err := svc.OptimizeAllTables(context.Background(), nil)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Optimized)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"wp_posts", "wp_options"}, tablesRepo.optimized)
	assert.False(t, result.Tables[1].Success)
	assert.Equal(t, "table is locked", result.Tables[1].Message)
}

func TestOptimizeTableMeasuresSavedBytes(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_posts", Engine: "InnoDB", SizeBytes: 4096},
		},
	}
	tablesRepo := &fakeTablesRepository{}
	svc := NewOptimizerService(statsRepo, tablesRepo)

	result, err := svc.OptimizeTable(context.Background(), "wp_posts")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"wp_posts"}, tablesRepo.optimized)
	assert.Empty(t, tablesRepo.analyzed)
}

func TestOptimizeTableAnalyzesEnginesWithoutRebuild(t *testing.T) {
	statsRepo := &fakeStatsRepository{
		tables: []entity.TableInfoEntity{
			{Name: "wp_cache", Engine: "MEMORY", SizeBytes: 1024},
		},
	}
	tablesRepo := &fakeTablesRepository{}
	svc := NewOptimizerService(statsRepo, tablesRepo)

	result, err := svc.OptimizeTable(context.Background(), "wp_cache")

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, tablesRepo.optimized)
	assert.Equal(t, []string{"wp_cache"}, tablesRepo.analyzed)
}
