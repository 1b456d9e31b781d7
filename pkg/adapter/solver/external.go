// 指示: miu200521358
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
)

// defaultSolveTimeout は外部ソルバ1回あたりの既定タイムアウトを表す。
const defaultSolveTimeout = 120 * time.Second

// ExternalHeatSolver は外部コマンドへのヒートウェイト計算委譲を表す。
// コマンドはstdinでJSONリクエストを受け取り、stdoutへJSONレスポンスを返す契約とする。
type ExternalHeatSolver struct {
	command string
	timeout time.Duration
}

// NewExternalHeatSolver はExternalHeatSolverを生成する。
// commandが空の場合、Solveは常にエラーを返す(呼び出し側がフォールバックする)。
func NewExternalHeatSolver(command string) *ExternalHeatSolver {
	return &ExternalHeatSolver{
		command: strings.TrimSpace(command),
		timeout: defaultSolveTimeout,
	}
}

// SetTimeout は外部ソルバのタイムアウトを設定する。
func (s *ExternalHeatSolver) SetTimeout(timeout time.Duration) {
	if s == nil || timeout <= 0 {
		return
	}
	s.timeout = timeout
}

// solveRequest は外部ソルバへのリクエストを表す。
type solveRequest struct {
	Vertices [][3]float64       `json:"vertices"`
	Faces    [][3]int           `json:"faces"`
	Bones    []solveRequestBone `json:"bones"`
}

// solveRequestBone はリクエスト中のボーン1本を表す。
type solveRequestBone struct {
	Name   string     `json:"name"`
	Head   [3]float64 `json:"head"`
	Tail   [3]float64 `json:"tail"`
	Parent int        `json:"parent"`
}

// solveResponse は外部ソルバからのレスポンスを表す。
type solveResponse struct {
	Weights [][]solveResponseWeight `json:"weights"`
	Error   string                  `json:"error"`
}

// solveResponseWeight はレスポンス中の1影響を表す。
type solveResponseWeight struct {
	Bone   string  `json:"bone"`
	Weight float64 `json:"weight"`
}

// Solve は外部コマンドへウェイト計算を委譲する。
func (s *ExternalHeatSolver) Solve(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
	if s == nil || s.command == "" {
		return nil, fmt.Errorf("ヒートソルバコマンドが未設定です")
	}
	if part == nil || part.VertexCount() == 0 {
		return nil, fmt.Errorf("ヒートソルバ対象のメッシュがありません")
	}
	if skeleton == nil || skeleton.Bones.Len() == 0 {
		return nil, fmt.Errorf("ヒートソルバ対象のスケルトンがありません")
	}

	requestBytes, err := json.Marshal(buildSolveRequest(part, skeleton))
	if err != nil {
		return nil, fmt.Errorf("ヒートソルバリクエストの生成に失敗しました: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	fields := strings.Fields(s.command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = bytes.NewReader(requestBytes)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logSolverDebug("ヒートソルバ起動: command=%s part=%s vertices=%d", fields[0], part.Name, part.VertexCount())
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ヒートソルバの実行に失敗しました: %w (stderr=%s)", err, strings.TrimSpace(stderr.String()))
	}

	weights, err := parseSolveResponse(stdout.Bytes(), part.VertexCount())
	if err != nil {
		return nil, err
	}
	logSolverDebug("ヒートソルバ完了: part=%s weightedBones=%d", part.Name, weights.WeightedBoneCount())
	return weights, nil
}

// buildSolveRequest はメッシュとスケルトンをリクエストへ変換する。
func buildSolveRequest(part *model.MeshPart, skeleton *model.Skeleton) solveRequest {
	request := solveRequest{
		Vertices: make([][3]float64, 0, part.VertexCount()),
		Faces:    part.Faces,
		Bones:    make([]solveRequestBone, 0, skeleton.Bones.Len()),
	}
	if request.Faces == nil {
		request.Faces = [][3]int{}
	}
	for _, position := range part.Positions {
		request.Vertices = append(request.Vertices, [3]float64{position.X, position.Y, position.Z})
	}
	for _, bone := range skeleton.Bones.Values() {
		request.Bones = append(request.Bones, solveRequestBone{
			Name:   bone.Name(),
			Head:   [3]float64{bone.Head.X, bone.Head.Y, bone.Head.Z},
			Tail:   [3]float64{bone.Tail.X, bone.Tail.Y, bone.Tail.Z},
			Parent: bone.ParentIndex,
		})
	}
	return request
}

// parseSolveResponse はレスポンスJSONをVertexWeightsへ変換する。
// 頂点数不一致・エラー申告はエラーとして返す。
func parseSolveResponse(data []byte, vertexCount int) (model.VertexWeights, error) {
	response := solveResponse{}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("ヒートソルバレスポンスの解析に失敗しました: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("ヒートソルバがエラーを返しました: %s", response.Error)
	}
	if len(response.Weights) != vertexCount {
		return nil, fmt.Errorf("ヒートソルバの頂点数が一致しません: got=%d want=%d", len(response.Weights), vertexCount)
	}

	weights := model.NewVertexWeights(vertexCount)
	for vertexIndex, influences := range response.Weights {
		row := make([]model.BoneWeight, 0, len(influences))
		total := 0.0
		for _, influence := range influences {
			if influence.Weight <= 0 || strings.TrimSpace(influence.Bone) == "" {
				continue
			}
			row = append(row, model.BoneWeight{BoneName: influence.Bone, Weight: influence.Weight})
			total += influence.Weight
		}
		if total > 0 {
			for i := range row {
				row[i].Weight /= total
			}
		}
		weights[vertexIndex] = row
	}
	return weights, nil
}

// logSolverDebug は外部ソルバのデバッグログを出力する。
func logSolverDebug(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Debug(format, params...)
}
