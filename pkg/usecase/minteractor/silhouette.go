// 指示: miu200521358
package minteractor

import (
	"math"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"gonum.org/v1/gonum/stat"
)

const (
	// silhouetteArmBandLowFrac は腕検出バンド範囲の下端割合を表す。
	silhouetteArmBandLowFrac = 0.50
	// silhouetteArmBandHighFrac は腕検出バンド範囲の上端割合を表す。
	silhouetteArmBandHighFrac = 0.95
	// silhouetteArmBandMinCount は腕検出バンドに必要な最小頂点数を表す。
	silhouetteArmBandMinCount = 3
	// silhouetteArmBandTopN は腕先端推定に使う最大バンド数を表す。
	silhouetteArmBandTopN = 5
	// silhouetteHipBandLowFrac は腰検出バンド範囲の下端割合を表す。
	silhouetteHipBandLowFrac = 0.44
	// silhouetteHipBandHighFrac は腰検出バンド範囲の上端割合を表す。
	silhouetteHipBandHighFrac = 0.52
	// silhouetteTorsoBandLowFrac は胴体幅測定バンド範囲の下端割合を表す。
	silhouetteTorsoBandLowFrac = 0.55
	// silhouetteTorsoBandHighFrac は胴体幅測定バンド範囲の上端割合を表す。
	silhouetteTorsoBandHighFrac = 0.70
	// silhouetteShoulderNarrowRatio は肩の付け根とみなす幅比率を表す。
	silhouetteShoulderNarrowRatio = 1.5
)

// SilhouetteLandmarks はシルエット解析で得たランドマークを表す。
type SilhouetteLandmarks struct {
	// ArmTipLeftX は腕バンド群のX最小側平均を表す。
	ArmTipLeftX float64
	// ArmTipRightX は腕バンド群のX最大側平均を表す。
	ArmTipRightX float64
	// ArmHeightZ は最幅バンドの中央高さを表す。
	ArmHeightZ float64
	// ArmHeightFrac はArmHeightZの全高に対する割合を表す。
	ArmHeightFrac float64
	// HipLeftX は腰バンド群のX最小側平均を表す。
	HipLeftX float64
	// HipRightX は腰バンド群のX最大側平均を表す。
	HipRightX float64
	// HipHalfWidth は腰の半幅を表す。
	HipHalfWidth float64
	// ShoulderJunctionZ は腕と胴体の接合高さを表す。
	ShoulderJunctionZ float64
	// MeshCenterX は腕先端から求めたメッシュ中心Xを表す。
	MeshCenterX float64
}

// silhouetteBand は高さバンド1つの集計を表す。
type silhouetteBand struct {
	XMin  float64
	XMax  float64
	YMin  float64
	YMax  float64
	Count int
}

// silhouetteArmBand は腕候補バンドを表す。
type silhouetteArmBand struct {
	Width float64
	Index int
	XMin  float64
	XMax  float64
}

// analyzeSilhouette は全頂点を高さバンドへ集計し、腕先端・腰幅・肩の付け根を推定する。
// 頂点がない場合や全高が小さすぎる場合、腕バンドが検出できない場合はnilを返す。
func analyzeSilhouette(modelData *model.RigModel, bandCount int) *SilhouetteLandmarks {
	if modelData == nil || bandCount <= 0 {
		return nil
	}
	minPos, maxPos, ok := modelData.Bounds()
	if !ok {
		return nil
	}
	height := maxPos.Z - minPos.Z
	if height < model.MinMeshHeight {
		return nil
	}

	bands := collectSilhouetteBands(modelData, bandCount, minPos.Z, height)
	bandHeight := height / float64(bandCount)

	armBands := collectArmBands(bands, bandCount)
	if len(armBands) == 0 {
		logRigDebug("シルエット解析: 腕バンドが検出できませんでした")
		return nil
	}
	sort.SliceStable(armBands, func(i, j int) bool {
		return armBands[i].Width > armBands[j].Width
	})
	topN := silhouetteArmBandTopN
	if len(armBands) < topN {
		topN = len(armBands)
	}
	xMins := make([]float64, 0, topN)
	xMaxs := make([]float64, 0, topN)
	for _, band := range armBands[:topN] {
		xMins = append(xMins, band.XMin)
		xMaxs = append(xMaxs, band.XMax)
	}
	armXMin := stat.Mean(xMins, nil)
	armXMax := stat.Mean(xMaxs, nil)
	armBandIndex := armBands[0].Index
	armHeightZ := minPos.Z + (float64(armBandIndex)+0.5)*bandHeight

	hipLeftX, hipRightX := collectHipExtent(bands, bandCount)
	torsoMedianWidth := torsoWidthMedian(bands, bandCount)
	shoulderZ := detectShoulderJunction(bands, bandCount, armBandIndex, torsoMedianWidth, minPos.Z, bandHeight, armHeightZ)

	landmarks := &SilhouetteLandmarks{
		ArmTipLeftX:       armXMin,
		ArmTipRightX:      armXMax,
		ArmHeightZ:        armHeightZ,
		ArmHeightFrac:     (armHeightZ - minPos.Z) / height,
		HipLeftX:          hipLeftX,
		HipRightX:         hipRightX,
		HipHalfWidth:      (hipRightX - hipLeftX) / 2.0,
		ShoulderJunctionZ: shoulderZ,
		MeshCenterX:       (armXMin + armXMax) / 2.0,
	}
	logRigDebug("シルエット解析: armTip=[%.4f, %.4f] armHeightFrac=%.4f hipHalfWidth=%.4f shoulderZ=%.4f",
		landmarks.ArmTipLeftX, landmarks.ArmTipRightX, landmarks.ArmHeightFrac, landmarks.HipHalfWidth, landmarks.ShoulderJunctionZ)
	return landmarks
}

// collectSilhouetteBands は全頂点を高さバンドへ集計する。
func collectSilhouetteBands(modelData *model.RigModel, bandCount int, zMin, height float64) []silhouetteBand {
	bands := make([]silhouetteBand, bandCount)
	for i := range bands {
		bands[i] = silhouetteBand{
			XMin: math.Inf(1),
			XMax: math.Inf(-1),
			YMin: math.Inf(1),
			YMax: math.Inf(-1),
		}
	}
	bandHeight := height / float64(bandCount)
	for _, part := range modelData.Parts {
		if part == nil {
			continue
		}
		for _, position := range part.Positions {
			index := int((position.Z - zMin) / bandHeight)
			if index < 0 {
				index = 0
			}
			if index >= bandCount {
				index = bandCount - 1
			}
			band := &bands[index]
			band.XMin = math.Min(band.XMin, position.X)
			band.XMax = math.Max(band.XMax, position.X)
			band.YMin = math.Min(band.YMin, position.Y)
			band.YMax = math.Max(band.YMax, position.Y)
			band.Count++
		}
	}
	return bands
}

// collectArmBands は腕検出範囲のバンドから候補を抽出する。
func collectArmBands(bands []silhouetteBand, bandCount int) []silhouetteArmBand {
	low := int(float64(bandCount) * silhouetteArmBandLowFrac)
	high := int(float64(bandCount) * silhouetteArmBandHighFrac)
	armBands := make([]silhouetteArmBand, 0, high-low)
	for i := low; i < high && i < bandCount; i++ {
		band := bands[i]
		if band.Count < silhouetteArmBandMinCount {
			continue
		}
		armBands = append(armBands, silhouetteArmBand{
			Width: band.XMax - band.XMin,
			Index: i,
			XMin:  band.XMin,
			XMax:  band.XMax,
		})
	}
	return armBands
}

// collectHipExtent は腰検出範囲のバンドからX範囲平均を返す。
func collectHipExtent(bands []silhouetteBand, bandCount int) (float64, float64) {
	low := int(float64(bandCount) * silhouetteHipBandLowFrac)
	high := int(float64(bandCount)*silhouetteHipBandHighFrac) + 1
	if high > bandCount {
		high = bandCount
	}
	leftSum := 0.0
	rightSum := 0.0
	count := 0
	for i := low; i < high; i++ {
		band := bands[i]
		if band.Count == 0 {
			continue
		}
		leftSum += band.XMin
		rightSum += band.XMax
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return leftSum / float64(count), rightSum / float64(count)
}

// torsoWidthMedian は胴体測定範囲のバンド幅中央値を返す。
func torsoWidthMedian(bands []silhouetteBand, bandCount int) float64 {
	low := int(float64(bandCount) * silhouetteTorsoBandLowFrac)
	high := int(float64(bandCount) * silhouetteTorsoBandHighFrac)
	widths := make([]float64, 0, high-low)
	for i := low; i < high && i < bandCount; i++ {
		band := bands[i]
		if band.Count == 0 {
			continue
		}
		widths = append(widths, band.XMax-band.XMin)
	}
	if len(widths) == 0 {
		return 0
	}
	sort.Float64s(widths)
	return widths[len(widths)/2]
}

// detectShoulderJunction は最幅バンドから下へ走査し、胴体幅へ収束した高さを返す。
func detectShoulderJunction(
	bands []silhouetteBand,
	bandCount int,
	armBandIndex int,
	torsoMedianWidth float64,
	zMin float64,
	bandHeight float64,
	fallbackZ float64,
) float64 {
	low := int(float64(bandCount) * silhouetteTorsoBandLowFrac)
	for i := armBandIndex; i > low; i-- {
		band := bands[i]
		if band.Count == 0 {
			continue
		}
		width := band.XMax - band.XMin
		if width < torsoMedianWidth*silhouetteShoulderNarrowRatio {
			return zMin + (float64(i)+0.5)*bandHeight
		}
	}
	return fallbackZ
}
