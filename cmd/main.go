// 指示: miu200521358
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_config"
	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/gltf"
	"github.com/miu200521358/mu_autorig/pkg/adapter/solver"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/minteractor"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
	"go.uber.org/zap/zapcore"
)

// options はCLI引数を保持する。
type options struct {
	inputPath      string
	outputPath     string
	configPath     string
	keepAnimations bool
	verbose        bool
}

// main は静的メッシュGLBへのリグ付与を実行する。
func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run はCLI処理全体を実行する。
func run(args []string, out io.Writer, errOut io.Writer) error {
	opts, err := parseOptions(args, errOut)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if opts.verbose {
		level = zapcore.DebugLevel
	}
	logging.SetDefaultLogger(logging.NewConsoleLogger(level))

	outputPath, err := resolveOutputPath(opts.inputPath, opts.outputPath)
	if err != nil {
		return err
	}
	if err := ensureOutputDir(outputPath); err != nil {
		return err
	}

	configRepository := io_config.NewConfigRepository()
	config, err := configRepository.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("設定読み込みに失敗しました: %w", err)
	}

	modelRepository := gltf.NewGltfRepository()
	usecase := minteractor.NewAutoRigUsecase(minteractor.AutoRigUsecaseDeps{
		ModelReader:  modelRepository,
		ModelWriter:  modelRepository,
		ConfigReader: configRepository,
		HeatSolver:   solver.NewExternalHeatSolver(config.HeatSolverCommand),
	})

	fmt.Fprintf(out, "[mu_autorig] リグ付与開始: %s\n", opts.inputPath)
	result, err := usecase.Rig(&minteractor.RigRequest{
		InputPath:  opts.inputPath,
		OutputPath: outputPath,
		Config:     config,
		SaveOptions: mrig.SaveOptions{
			KeepAnimations: opts.keepAnimations,
		},
	})
	if err != nil {
		return fmt.Errorf("リグ付与に失敗しました: %w", err)
	}

	for _, report := range result.Reports {
		fmt.Fprintf(out, "[mu_autorig] %s: method=%s bones=%d influences=%d\n",
			report.PartName, report.Method, report.WeightedBones, report.MaxInfluences)
	}
	fmt.Fprintf(out, "[mu_autorig] リグ付与完了: %s\n", result.OutputPath)
	return nil
}

// parseOptions はCLI引数を解析する。
func parseOptions(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("mu_autorig", flag.ContinueOnError)
	fs.SetOutput(errOut)

	in := fs.String("in", "", "入力GLBファイルパス")
	out := fs.String("out", "", "出力GLBファイルパス")
	config := fs.String("config", "", "リグ設定JSONファイルパス")
	keepAnimations := fs.Bool("keep-animations", false, "入力のanimationsを保持する")
	verbose := fs.Bool("verbose", false, "デバッグログを出力する")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *in == "" && fs.NArg() > 0 {
		*in = fs.Arg(0)
	}
	if *out == "" && fs.NArg() > 1 {
		*out = fs.Arg(1)
	}
	if *in == "" {
		return options{}, fmt.Errorf("入力GLBファイルを指定してください (-in)")
	}

	if !strings.EqualFold(filepath.Ext(*in), ".glb") {
		return options{}, fmt.Errorf("入力拡張子が .glb ではありません: %s", *in)
	}

	return options{
		inputPath:      *in,
		outputPath:     *out,
		configPath:     *config,
		keepAnimations: *keepAnimations,
		verbose:        *verbose,
	}, nil
}

// resolveOutputPath は出力GLBパスを解決する。
func resolveOutputPath(inputPath string, outputPath string) (string, error) {
	if strings.TrimSpace(outputPath) == "" {
		dir := filepath.Dir(inputPath)
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		return filepath.Join(dir, base+"_rigged.glb"), nil
	}
	if !strings.EqualFold(filepath.Ext(outputPath), ".glb") {
		return "", fmt.Errorf("出力拡張子が .glb ではありません: %s", outputPath)
	}
	return outputPath, nil
}

// ensureOutputDir は出力先ディレクトリを作成する。
func ensureOutputDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力先ディレクトリの作成に失敗しました: %w", err)
	}
	return nil
}
