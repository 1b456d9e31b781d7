// 指示: miu200521358
package minteractor

import (
	"fmt"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

// fakeModelReader はパスごとのモデルを返すテスト用リーダーを表す。
type fakeModelReader struct {
	models map[string]*model.RigModel
}

func (r *fakeModelReader) CanLoad(path string) bool {
	return true
}

func (r *fakeModelReader) Load(path string) (*model.RigModel, error) {
	modelData, ok := r.models[path]
	if !ok {
		return nil, fmt.Errorf("モデルがありません: %s", path)
	}
	return modelData, nil
}

// fakeModelWriter は書き込み内容を記録するテスト用ライターを表す。
type fakeModelWriter struct {
	saveErr      error
	savedPath    string
	savedModel   *model.RigModel
	savedOptions mrig.SaveOptions
}

func (w *fakeModelWriter) CanSave(path string) bool {
	return true
}

func (w *fakeModelWriter) Save(path string, modelData *model.RigModel, options mrig.SaveOptions) error {
	if w.saveErr != nil {
		return w.saveErr
	}
	w.savedPath = path
	w.savedModel = modelData
	w.savedOptions = options
	return nil
}

// fakeConfigReader は設定読み込みを差し替えるテスト用リーダーを表す。
type fakeConfigReader struct {
	config *model.RigConfig
	calls  int
}

func (r *fakeConfigReader) Load(path string) (*model.RigConfig, error) {
	r.calls++
	if r.config == nil {
		return nil, fmt.Errorf("設定がありません: %s", path)
	}
	return r.config, nil
}

// syntheticRigConfig は手続き生成+距離方式のテスト用設定を返す。
func syntheticRigConfig() *model.RigConfig {
	config := model.NewRigConfig()
	config.RigSource = model.RIG_SOURCE_SYNTHETIC
	config.SkinningMethod = model.SKINNING_METHOD_DISTANCE
	return config
}

// newRigTestUsecase は入力パス"in.glb"で人型点群を返すユースケースを構築する。
func newRigTestUsecase(writer *fakeModelWriter, extraModels map[string]*model.RigModel) *AutoRigUsecase {
	models := map[string]*model.RigModel{"in.glb": buildHumanoidPointCloud()}
	for path, modelData := range extraModels {
		models[path] = modelData
	}
	return NewAutoRigUsecase(AutoRigUsecaseDeps{
		ModelReader: &fakeModelReader{models: models},
		ModelWriter: writer,
	})
}

func TestRigEndToEnd(t *testing.T) {
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, nil)

	result, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		Config:     syntheticRigConfig(),
	})
	if err != nil {
		t.Fatalf("rig failed: %v", err)
	}
	if result.OutputPath != "out.glb" || writer.savedPath != "out.glb" {
		t.Fatalf("output path mismatch: %s / %s", result.OutputPath, writer.savedPath)
	}
	if writer.savedModel != result.Model {
		t.Fatalf("writer should receive the rigged model")
	}
	if result.Model.Skeleton == nil || result.Model.Skeleton.Bones.Len() != 23 {
		t.Fatalf("synthetic skeleton should have 23 bones: %+v", result.Model.Skeleton)
	}
	if result.Landmarks == nil {
		t.Fatalf("landmarks should be detected for the humanoid cloud")
	}
	if len(result.Reports) != 1 || result.Reports[0].Method != weightMethodDistance {
		t.Fatalf("reports mismatch: %+v", result.Reports)
	}
	assertWeightSums(t, result.Model.Parts[0].Weights)
}

func TestRigValidatesRequest(t *testing.T) {
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, nil)

	if _, err := usecase.Rig(nil); err == nil {
		t.Fatalf("nil request should fail")
	}
	if _, err := usecase.Rig(&RigRequest{OutputPath: "out.glb"}); err == nil {
		t.Fatalf("empty input path should fail")
	}
	if _, err := usecase.Rig(&RigRequest{InputPath: "in.glb"}); err == nil {
		t.Fatalf("empty output path should fail")
	}
}

func TestRigRejectsEmptyModel(t *testing.T) {
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, map[string]*model.RigModel{
		"empty.glb": model.NewRigModel(),
	})
	_, err := usecase.Rig(&RigRequest{
		InputPath:  "empty.glb",
		OutputPath: "out.glb",
		Config:     syntheticRigConfig(),
	})
	if err == nil {
		t.Fatalf("model without parts should fail")
	}
}

// buildPoleModel は高さheightの縦柱点群モデルを返す。
func buildPoleModel(height float64) *model.RigModel {
	positions := []mmath.Vec3{}
	for i := 0; i <= 10; i++ {
		positions = append(positions, mmath.NewVec3(0, 0, height*float64(i)/10.0))
	}
	modelData := model.NewRigModel()
	modelData.Parts = append(modelData.Parts, &model.MeshPart{Name: "pole", Positions: positions})
	return modelData
}

func TestRigHeightBoundary(t *testing.T) {
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, map[string]*model.RigModel{
		"flat.glb": buildPoleModel(0.01),
		"tiny.glb": buildPoleModel(0.011),
	})

	// 高さ0.01ちょうどは拒否する
	if _, err := usecase.Rig(&RigRequest{
		InputPath:  "flat.glb",
		OutputPath: "out.glb",
		Config:     syntheticRigConfig(),
	}); err == nil {
		t.Fatalf("height at the minimum should fail")
	}
	// わずかでも超えていれば処理を続行する
	result, err := usecase.Rig(&RigRequest{
		InputPath:  "tiny.glb",
		OutputPath: "out.glb",
		Config:     syntheticRigConfig(),
	})
	if err != nil {
		t.Fatalf("height above the minimum should succeed: %v", err)
	}
	// 縦柱はランドマーク検出不能のため比率補正なしで完了する
	if result.Landmarks != nil {
		t.Fatalf("pole model should not yield landmarks")
	}
	assertWeightSums(t, result.Model.Parts[0].Weights)
}

func TestRigTemplateSource(t *testing.T) {
	templateModel := model.NewRigModel()
	templateModel.SkeletonCandidates = []*model.Skeleton{
		buildTemplateSkeleton(t, "template rig", []string{"Hips", "Spine"}),
	}
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, map[string]*model.RigModel{
		"tpl.glb": templateModel,
	})

	config := syntheticRigConfig()
	config.RigSource = model.RIG_SOURCE_TEMPLATE
	config.TemplatePath = "tpl.glb"

	result, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		Config:     config,
	})
	if err != nil {
		t.Fatalf("rig failed: %v", err)
	}
	skeleton := result.Model.Skeleton
	if skeleton.Bones.Len() != 2 {
		t.Fatalf("template skeleton should be adopted: %d", skeleton.Bones.Len())
	}
	if !skeleton.Bones.ContainsName(model.HIPS.String()) || !skeleton.Bones.ContainsName(model.SPINE.String()) {
		t.Fatalf("template bone names should be normalized")
	}
}

func TestRigTemplateFallbackToSynthetic(t *testing.T) {
	writer := &fakeModelWriter{}
	usecase := newRigTestUsecase(writer, nil)

	config := syntheticRigConfig()
	config.RigSource = model.RIG_SOURCE_TEMPLATE
	config.TemplatePath = "missing.glb"

	result, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		Config:     config,
	})
	if err != nil {
		t.Fatalf("template failure should fall back: %v", err)
	}
	if result.Model.Skeleton.Bones.Len() != 23 {
		t.Fatalf("fallback should build the synthetic skeleton: %d", result.Model.Skeleton.Bones.Len())
	}
}

func TestRigConfigPrecedence(t *testing.T) {
	configReader := &fakeConfigReader{config: syntheticRigConfig()}
	writer := &fakeModelWriter{}
	usecase := NewAutoRigUsecase(AutoRigUsecaseDeps{
		ModelReader:  &fakeModelReader{models: map[string]*model.RigModel{"in.glb": buildHumanoidPointCloud()}},
		ModelWriter:  writer,
		ConfigReader: configReader,
	})

	// Config直接指定が最優先でConfigPathは読まれない
	if _, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		ConfigPath: "rig.json",
		Config:     syntheticRigConfig(),
	}); err != nil {
		t.Fatalf("rig failed: %v", err)
	}
	if configReader.calls != 0 {
		t.Fatalf("config reader should not be called when Config is set: %d", configReader.calls)
	}

	// ConfigPathのみ指定で読み込みが走る
	if _, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		ConfigPath: "rig.json",
	}); err != nil {
		t.Fatalf("rig failed: %v", err)
	}
	if configReader.calls != 1 {
		t.Fatalf("config reader should be called once: %d", configReader.calls)
	}
}

func TestRigWriterErrorPropagates(t *testing.T) {
	writer := &fakeModelWriter{saveErr: fmt.Errorf("書き込み失敗")}
	usecase := newRigTestUsecase(writer, nil)

	if _, err := usecase.Rig(&RigRequest{
		InputPath:  "in.glb",
		OutputPath: "out.glb",
		Config:     syntheticRigConfig(),
	}); err == nil {
		t.Fatalf("writer error should propagate")
	}
}
