// 指示: miu200521358
package io_config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
)

// ConfigRepository はフラットなkey-value設定ファイルの読み込み契約を表す。
// 未知キー・型不一致は警告の上で既定値へ退避し、致命エラーにはしない。
type ConfigRepository struct{}

// NewConfigRepository はConfigRepositoryを生成する。
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// Load は設定ファイルを読み込みRigConfigを構築する。
// パス未指定時は既定値を返す。ファイル不正時は警告の上で既定値を返す。
func (r *ConfigRepository) Load(path string) (*model.RigConfig, error) {
	config := model.NewRigConfig()
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return config, nil
	}

	b, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, io_common.NewIoFileNotFound(trimmedPath, err)
		}
		return nil, io_common.NewIoParseFailed("設定ファイルの読み取りに失敗しました", err)
	}

	values := map[string]any{}
	if err := json.Unmarshal(b, &values); err != nil {
		logConfigWarn("設定ファイルがJSONオブジェクトではないため既定値で継続します: %s", trimmedPath)
		return config, nil
	}

	applySettings(config, values)
	config.ClampTunables()
	return config, nil
}

// applySettings は設定表の各キーをRigConfigへ反映する。
func applySettings(config *model.RigConfig, values map[string]any) {
	config.HipsHeightFrac = cfgNumber(values, "hips_height_frac", config.HipsHeightFrac)
	config.SpineHeightFrac = cfgNumber(values, "spine_height_frac", config.SpineHeightFrac)
	config.Spine1HeightFrac = cfgNumber(values, "spine1_height_frac", config.Spine1HeightFrac)
	config.Spine2HeightFrac = cfgNumber(values, "spine2_height_frac", config.Spine2HeightFrac)
	config.NeckHeightFrac = cfgNumber(values, "neck_height_frac", config.NeckHeightFrac)
	config.HeadHeightFrac = cfgNumber(values, "head_height_frac", config.HeadHeightFrac)
	config.HeadTopHeightFrac = cfgNumber(values, "head_top_height_frac", config.HeadTopHeightFrac)
	config.HeadEndHeightFrac = cfgNumber(values, "head_end_height_frac", config.HeadEndHeightFrac)
	config.ShoulderHeightFrac = cfgNumber(values, "shoulder_height_frac", config.ShoulderHeightFrac)
	config.ShoulderInnerFrac = cfgNumber(values, "shoulder_inner_offset_frac", config.ShoulderInnerFrac)
	config.ShoulderOuterFrac = cfgNumber(values, "shoulder_outer_offset_frac", config.ShoulderOuterFrac)
	config.UpperArmEndFrac = cfgNumber(values, "upper_arm_end_offset_frac", config.UpperArmEndFrac)
	config.ForeArmEndFrac = cfgNumber(values, "forearm_end_offset_frac", config.ForeArmEndFrac)
	config.HandEndFrac = cfgNumber(values, "hand_end_offset_frac", config.HandEndFrac)
	config.LegXOffsetFrac = cfgNumber(values, "leg_x_offset_frac", config.LegXOffsetFrac)
	config.UpperLegEndFrac = cfgNumber(values, "upper_leg_end_height_frac", config.UpperLegEndFrac)
	config.LowerLegEndFrac = cfgNumber(values, "lower_leg_end_height_frac", config.LowerLegEndFrac)
	config.FootForwardFrac = cfgNumber(values, "foot_forward_offset_frac", config.FootForwardFrac)
	config.FootHeightFrac = cfgNumber(values, "foot_height_frac", config.FootHeightFrac)
	config.ToeForwardFrac = cfgNumber(values, "toe_forward_offset_frac", config.ToeForwardFrac)
	config.ToeHeightFrac = cfgNumber(values, "toe_height_frac", config.ToeHeightFrac)

	config.WeightTopN = cfgInt(values, "weight_top_n", config.WeightTopN)
	config.WeightFalloff = cfgNumber(values, "weight_falloff_strength", config.WeightFalloff)
	config.MinWeightThreshold = cfgNumber(values, "min_weight_threshold", config.MinWeightThreshold)
	config.MaxInfluences = cfgInt(values, "max_influences", config.MaxInfluences)

	config.SkinningMethod = resolveSkinningMethod(cfgText(values, "skinning_method", string(config.SkinningMethod)))
	config.RigSource = resolveRigSource(cfgText(values, "rig_source", string(config.RigSource)))
	config.WeightBoneScope = resolveWeightBoneScope(cfgText(values, "distance_weight_bone_scope", string(config.WeightBoneScope)))

	config.UseAnatomyGates = cfgBool(values, "distance_use_anatomy_masks", config.UseAnatomyGates)
	config.CalibrateFromArmature = cfgBool(values, "distance_calibrate_from_armature", config.CalibrateFromArmature)
	config.ProportionalFit = cfgBool(values, "mesh_proportional_fit", config.ProportionalFit)

	config.SilhouetteBandCount = cfgInt(values, "silhouette_band_count", config.SilhouetteBandCount)
	config.TemplatePath = cfgText(values, "template_glb", config.TemplatePath)
	config.HeatSolverCommand = cfgText(values, "bone_heat_command", config.HeatSolverCommand)
}

// resolveSkinningMethod はスキニング方式の設定値を解決する。
// 未知値は既定実装に合わせて bone_heat へ退避する。
func resolveSkinningMethod(value string) model.SkinningMethod {
	switch model.SkinningMethod(strings.ToLower(strings.TrimSpace(value))) {
	case model.SKINNING_METHOD_BONE_HEAT:
		return model.SKINNING_METHOD_BONE_HEAT
	case model.SKINNING_METHOD_DISTANCE:
		return model.SKINNING_METHOD_DISTANCE
	default:
		logConfigWarn("skinning_method が未知の値のため bone_heat へ退避します: %s", value)
		return model.SKINNING_METHOD_BONE_HEAT
	}
}

// resolveRigSource はスケルトン取得元の設定値を解決する。
// 旧表記 mixamo_template は template の別名として受理する。
func resolveRigSource(value string) model.RigSource {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case string(model.RIG_SOURCE_TEMPLATE), "mixamo_template":
		return model.RIG_SOURCE_TEMPLATE
	case string(model.RIG_SOURCE_SYNTHETIC):
		return model.RIG_SOURCE_SYNTHETIC
	default:
		logConfigWarn("rig_source が未知の値のため synthetic へ退避します: %s", value)
		return model.RIG_SOURCE_SYNTHETIC
	}
}

// resolveWeightBoneScope は距離ウェイト対象範囲の設定値を解決する。
func resolveWeightBoneScope(value string) model.WeightBoneScope {
	switch model.WeightBoneScope(strings.ToLower(strings.TrimSpace(value))) {
	case model.WEIGHT_BONE_SCOPE_CORE:
		return model.WEIGHT_BONE_SCOPE_CORE
	case model.WEIGHT_BONE_SCOPE_ALL:
		return model.WEIGHT_BONE_SCOPE_ALL
	default:
		logConfigWarn("distance_weight_bone_scope が未知の値のため core へ退避します: %s", value)
		return model.WEIGHT_BONE_SCOPE_CORE
	}
}

// cfgNumber はキーの値をfloat64として解決する。
func cfgNumber(values map[string]any, key string, defaultValue float64) float64 {
	raw, ok := values[key]
	if !ok {
		return defaultValue
	}
	switch value := raw.(type) {
	case float64:
		return value
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			return parsed
		}
	case bool:
		if value {
			return 1
		}
		return 0
	}
	logConfigWarn("設定 %s を数値として解釈できないため既定値 %v を使用します", key, defaultValue)
	return defaultValue
}

// cfgInt はキーの値をintとして解決する。
func cfgInt(values map[string]any, key string, defaultValue int) int {
	raw, ok := values[key]
	if !ok {
		return defaultValue
	}
	switch value := raw.(type) {
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	logConfigWarn("設定 %s を整数として解釈できないため既定値 %v を使用します", key, defaultValue)
	return defaultValue
}

// cfgBool はキーの値をboolとして解決する。
func cfgBool(values map[string]any, key string, defaultValue bool) bool {
	raw, ok := values[key]
	if !ok {
		return defaultValue
	}
	switch value := raw.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	logConfigWarn("設定 %s を真偽値として解釈できないため既定値 %v を使用します", key, defaultValue)
	return defaultValue
}

// cfgText はキーの値を文字列として解決する。
func cfgText(values map[string]any, key string, defaultValue string) string {
	raw, ok := values[key]
	if !ok {
		return defaultValue
	}
	switch value := raw.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return fmt.Sprintf("%t", value)
	}
	logConfigWarn("設定 %s を文字列として解釈できないため既定値 %q を使用します", key, defaultValue)
	return defaultValue
}

// logConfigWarn は設定読み込みの警告ログを出力する。
func logConfigWarn(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Warn(format, params...)
}
