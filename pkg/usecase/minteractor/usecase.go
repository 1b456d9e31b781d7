// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

// AutoRigUsecaseDeps はリグ生成ユースケースの依存を表す。
type AutoRigUsecaseDeps struct {
	ModelReader  mrig.IFileReader
	ModelWriter  mrig.IFileWriter
	ConfigReader mrig.IConfigReader
	HeatSolver   mrig.IHeatWeightSolver
}

// AutoRigUsecase は静的メッシュへのリグ付与処理をまとめたユースケースを表す。
type AutoRigUsecase struct {
	modelReader  mrig.IFileReader
	modelWriter  mrig.IFileWriter
	configReader mrig.IConfigReader
	heatSolver   mrig.IHeatWeightSolver
}

// NewAutoRigUsecase はリグ生成ユースケースを生成する。
func NewAutoRigUsecase(deps AutoRigUsecaseDeps) *AutoRigUsecase {
	return &AutoRigUsecase{
		modelReader:  deps.ModelReader,
		modelWriter:  deps.ModelWriter,
		configReader: deps.ConfigReader,
		heatSolver:   deps.HeatSolver,
	}
}

// logRigInfo はリグ生成のINFOログを出力する。
func logRigInfo(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Info(format, params...)
}

// logRigDebug はリグ生成のデバッグログを出力する。
func logRigDebug(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Debug(format, params...)
}

// logRigWarn はリグ生成の警告ログを出力する。
func logRigWarn(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Warn(format, params...)
}
