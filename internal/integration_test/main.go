// 指示: miu200521358
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_config"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/gltf"
	"github.com/miu200521358/mu_autorig/pkg/adapter/solver"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/minteractor"
)

const (
	batchOutputDirMode = 0o755
)

var targetModelPaths = []string{
	"E:/MMD_E/202101_vroid/Glb/static/avatar_base.glb",
	// "E:/MMD_E/202101_vroid/Glb/static/avatar_tall.glb",
	// "E:/MMD_E/202101_vroid/Glb/static/avatar_chibi.glb",
	// "E:/MMD_E/202101_vroid/Glb/static/avatar_wide_shoulder.glb",
	// "C:/Codex/mlib/mu_autorig/internal/test_resources/glb/column_mesh.glb",
}

// batchConfig はバッチリグ付与の実行設定を表す。
type batchConfig struct {
	OutputRoot string
	ConfigPath string
	DryRun     bool
	FailFast   bool
}

// rigEntry は1モデル分のリグ付与入力情報を表す。
type rigEntry struct {
	Index      int
	SourcePath string
	ModelName  string
	CaseDir    string
	OutputPath string
}

// rigBatchResult は1モデル分のリグ付与結果を表す。
type rigBatchResult struct {
	Entry         rigEntry
	Status        string
	Duration      time.Duration
	Err           error
	WeightSummary string
}

// main はウェイト検証向けのGLB一括リグ付与を実行する。
func main() {
	os.Exit(run())
}

// run は実行設定を解決して一括リグ付与を実行し、終了コードを返す。
func run() int {
	config, err := parseBatchConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定解析に失敗しました: %v\n", err)
		return 2
	}
	entries := buildRigEntries(config.OutputRoot, targetModelPaths)
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "リグ付与対象モデルがありません")
		return 2
	}

	results := executeBatchRig(config, entries)
	printBatchSummary(results)

	hasFailed := false
	for _, result := range results {
		if result.Status == "failed" {
			hasFailed = true
			break
		}
	}
	if hasFailed {
		return 1
	}
	return 0
}

// parseBatchConfig はコマンドライン引数から実行設定を構築する。
func parseBatchConfig() (batchConfig, error) {
	defaultOutputRoot, err := resolveDefaultOutputRoot()
	if err != nil {
		return batchConfig{}, err
	}
	outputRoot := flag.String("output-root", defaultOutputRoot, "リグ付与結果の出力ルートディレクトリ")
	configPath := flag.String("config", "", "リグ設定JSONファイルパス")
	dryRun := flag.Bool("dry-run", false, "実処理せず、入力解決と出力先計画のみ表示する")
	failFast := flag.Bool("fail-fast", false, "失敗時に即時終了する")
	flag.Parse()

	trimmedOutputRoot := strings.TrimSpace(*outputRoot)
	if trimmedOutputRoot == "" {
		return batchConfig{}, errors.New("output-root が空です")
	}
	return batchConfig{
		OutputRoot: filepath.Clean(trimmedOutputRoot),
		ConfigPath: strings.TrimSpace(*configPath),
		DryRun:     *dryRun,
		FailFast:   *failFast,
	}, nil
}

// resolveDefaultOutputRoot はスクリプト配置ディレクトリ基準の既定出力先を返す。
func resolveDefaultOutputRoot() (string, error) {
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("実行ファイル位置を取得できません")
	}
	currentDir := filepath.Dir(currentFilePath)
	return filepath.Join(currentDir, "output"), nil
}

// buildRigEntries は入力パス一覧からリグ付与対象エントリを生成する。
func buildRigEntries(outputRoot string, inputPaths []string) []rigEntry {
	entries := make([]rigEntry, 0, len(inputPaths))
	for i, rawPath := range inputPaths {
		resolvedInputPath := normalizeInputPath(rawPath)
		modelName := resolveModelName(rawPath)
		safeModelName := sanitizePathComponent(modelName)
		caseDirName := fmt.Sprintf("%03d_%s", i+1, safeModelName)
		caseDir := filepath.Join(outputRoot, caseDirName)
		outputPath := filepath.Join(caseDir, safeModelName+"_rigged.glb")
		entries = append(entries, rigEntry{
			Index:      i + 1,
			SourcePath: resolvedInputPath,
			ModelName:  modelName,
			CaseDir:    caseDir,
			OutputPath: outputPath,
		})
	}
	return entries
}

// executeBatchRig は全モデルのリグ付与処理を順次実行する。
func executeBatchRig(config batchConfig, entries []rigEntry) []rigBatchResult {
	results := make([]rigBatchResult, 0, len(entries))

	configRepository := io_config.NewConfigRepository()
	rigConfig, err := configRepository.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "リグ設定読み込みに失敗しました: %v\n", err)
		return results
	}
	modelRepository := gltf.NewGltfRepository()
	usecase := minteractor.NewAutoRigUsecase(minteractor.AutoRigUsecaseDeps{
		ModelReader:  modelRepository,
		ModelWriter:  modelRepository,
		ConfigReader: configRepository,
		HeatSolver:   solver.NewExternalHeatSolver(rigConfig.HeatSolverCommand),
	})

	total := len(entries)
	for _, entry := range entries {
		fmt.Printf("[%d/%d] リグ付与開始: model=%s\n", entry.Index, total, entry.ModelName)
		result := rigModelEntry(usecase, rigConfig, config, entry)
		results = append(results, result)
		switch result.Status {
		case "succeeded":
			fmt.Printf("[%d/%d] リグ付与成功: model=%s output=%s elapsed=%s\n", entry.Index, total, entry.ModelName, entry.OutputPath, result.Duration.Round(time.Millisecond))
			if strings.TrimSpace(result.WeightSummary) != "" {
				fmt.Printf("[%d/%d] ウェイト内訳: %s\n", entry.Index, total, result.WeightSummary)
			}
		case "dry_run":
			fmt.Printf("[%d/%d] DRY-RUN: model=%s input=%s output=%s\n", entry.Index, total, entry.ModelName, entry.SourcePath, entry.OutputPath)
		case "skipped_missing":
			fmt.Printf("[%d/%d] 入力不足でスキップ: model=%s input=%s reason=%v\n", entry.Index, total, entry.ModelName, entry.SourcePath, result.Err)
		default:
			fmt.Printf("[%d/%d] リグ付与失敗: model=%s reason=%v\n", entry.Index, total, entry.ModelName, result.Err)
			if config.FailFast {
				return results
			}
		}
	}
	return results
}

// rigModelEntry は1モデル分のリグ付与を実行する。
func rigModelEntry(usecase *minteractor.AutoRigUsecase, rigConfig *model.RigConfig, config batchConfig, entry rigEntry) rigBatchResult {
	result := rigBatchResult{
		Entry:  entry,
		Status: "failed",
	}
	if _, err := os.Stat(entry.SourcePath); err != nil {
		result.Status = "skipped_missing"
		result.Err = err
		return result
	}
	if config.DryRun {
		result.Status = "dry_run"
		return result
	}
	if err := os.MkdirAll(entry.CaseDir, batchOutputDirMode); err != nil {
		result.Err = fmt.Errorf("出力ディレクトリ作成に失敗しました: %w", err)
		return result
	}

	startedAt := time.Now()
	rigResult, err := usecase.Rig(&minteractor.RigRequest{
		InputPath:  entry.SourcePath,
		OutputPath: entry.OutputPath,
		Config:     rigConfig,
	})
	if err != nil {
		result.Err = fmt.Errorf("リグ付与に失敗しました: %w", err)
		return result
	}
	if rigResult == nil || rigResult.Model == nil {
		result.Err = errors.New("リグ付与結果が空です")
		return result
	}

	result.Status = "succeeded"
	result.Duration = time.Since(startedAt)
	result.WeightSummary = summarizeWeightReports(rigResult.Reports)
	return result
}

// summarizeWeightReports はパートごとのウェイト割当結果の要約文字列を返す。
func summarizeWeightReports(reports []*minteractor.PartWeightReport) string {
	if len(reports) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reports))
	for _, report := range reports {
		if report == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(method=%s bones=%d influences=%d attempts=%d)",
			report.PartName, report.Method, report.WeightedBones, report.MaxInfluences, len(report.Attempts)))
	}
	return strings.Join(parts, ", ")
}

// printBatchSummary はリグ付与結果の集計を標準出力へ表示する。
func printBatchSummary(results []rigBatchResult) {
	succeeded := 0
	failed := 0
	skipped := 0
	dryRun := 0
	for _, result := range results {
		switch result.Status {
		case "succeeded":
			succeeded++
		case "dry_run":
			dryRun++
		case "skipped_missing":
			skipped++
		default:
			failed++
		}
	}
	fmt.Printf(
		"バッチリグ付与サマリ: total=%d succeeded=%d failed=%d skipped_missing=%d dry_run=%d\n",
		len(results),
		succeeded,
		failed,
		skipped,
		dryRun,
	)
}

// resolveModelName は入力パスから拡張子を除いたモデル名を返す。
func resolveModelName(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	ext := filepath.Ext(base)
	name := strings.TrimSpace(strings.TrimSuffix(base, ext))
	if name == "" {
		return "model"
	}
	return name
}

// normalizeInputPath は入力パスを実行環境向けに正規化する。
func normalizeInputPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	return filepath.Clean(convertWindowsPathToWsl(path))
}

// convertWindowsPathToWsl は Linux 実行時に Windows パスを WSL パスへ変換する。
func convertWindowsPathToWsl(path string) string {
	trimmed := strings.TrimSpace(path)
	if runtime.GOOS != "linux" {
		return trimmed
	}
	if len(trimmed) < 2 || trimmed[1] != ':' {
		return trimmed
	}
	drive := strings.ToLower(trimmed[:1])
	rest := strings.ReplaceAll(trimmed[2:], "\\", "/")
	if rest == "" {
		return filepath.ToSlash(filepath.Join("/mnt", drive))
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return filepath.ToSlash(filepath.Join("/mnt", drive) + rest)
}

// sanitizePathComponent は出力ディレクトリ/ファイル名に使えない文字を置換する。
func sanitizePathComponent(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "model"
	}
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		default:
			if r < 0x20 {
				return '_'
			}
			return r
		}
	}, trimmed)
	replaced = strings.Trim(replaced, " .")
	if replaced == "" {
		return "model"
	}
	return replaced
}
