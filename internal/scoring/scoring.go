// Package scoring implements the deterministic sunset quality model: four
// independent factor scorers (cloud, particulate, humidity, visibility), a
// weighted composite, and a ceiling-gating step that caps unrealistic
// combinations. Everything here is a pure function of its inputs; there is no
// shared state and no I/O.
package scoring

import (
	"math"
	"time"

	"sunsetcast/internal/types"
)

// Ideal values and decay widths for the gaussian factor scorers.
const (
	idealCloudCover = 50.0 // percent; balance of color-scattering clouds and open sky
	cloudCoverSigma = 20.0

	idealPM25 = 15.0 // µg/m³; light loading enhances color via Mie scattering
	pm25Sigma = 35.0

	idealAOD     = 0.3
	aodSigma     = 0.4
	minUsefulAOD = 0.05 // below this the air is too clean for enhancement
	cleanAirAOD  = 30.0 // fixed score when AOD < minUsefulAOD

	idealHumidity = 60.0 // percent
	humiditySigma = 20.0

	visibilityPenaltyM  = 5000.0  // linear penalty below 5 km
	visibilitySaturateM = 10000.0 // full score at 10 km
)

// Composite weights. Clouds dominate, aerosols second.
const (
	weightCloud      = 0.40
	weightParticle   = 0.30
	weightVisibility = 0.20
	weightHumidity   = 0.10
)

// GaussianScore converts a deviation from an ideal value into a desirability
// factor in (0,1]. Larger sigma flattens the penalty curve. Sigma must be
// positive; this is a caller contract and is not enforced here.
func GaussianScore(distance, sigma float64) float64 {
	return math.Exp(-(distance * distance) / (2 * sigma * sigma))
}

// logistic is the standard sigmoid 1/(1+e^-x).
func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// CloudScore combines total coverage (peaking at 50%) with cloud type quality:
// mid and high clouds catch sunset color while low clouds block the sun.
func CloudScore(cover, low, mid, high float64) float64 {
	coverageScore := GaussianScore(math.Abs(cover-idealCloudCover), cloudCoverSigma) * 100
	cloudQuality := (mid+high)/2 - low
	typeScore := logistic(cloudQuality/20) * 100
	return (coverageScore + typeScore) / 2
}

// ParticleScore blends PM2.5 loading, aerosol optical depth, and the
// PM10/PM2.5 size ratio. A ratio between 2.0 and 3.5 is consistent with a
// typical atmospheric aerosol mix.
func ParticleScore(pm25, pm10, aod float64) float64 {
	pmScore := GaussianScore(math.Abs(pm25-idealPM25), pm25Sigma) * 100

	var aodScore float64
	if aod < minUsefulAOD {
		aodScore = cleanAirAOD
	} else {
		aodScore = GaussianScore(math.Abs(aod-idealAOD), aodSigma) * 100
	}

	var sizeScore float64
	switch {
	case pm25 > 0 && pm10/pm25 >= 2.0 && pm10/pm25 <= 3.5:
		sizeScore = 100
	case pm25 > 0:
		sizeScore = 70
	default:
		sizeScore = 50 // no particulate data
	}

	return pmScore*0.5 + aodScore*0.4 + sizeScore*0.1
}

// HumidityScore peaks at 60% relative humidity.
func HumidityScore(humidity float64) float64 {
	return GaussianScore(math.Abs(humidity-idealHumidity), humiditySigma) * 100
}

// VisibilityScore penalizes visibility linearly below 5 km and saturates at
// 10 km.
func VisibilityScore(visibilityM float64) float64 {
	if visibilityM < visibilityPenaltyM {
		return visibilityM / visibilityPenaltyM * 100
	}
	return math.Min(100, visibilityM/visibilitySaturateM*100)
}

// cloudCeiling caps the composite when there is too little cloud to scatter
// light: a clear sky cannot produce a notable sunset no matter how good the
// aerosols are.
func cloudCeiling(cover float64) float64 {
	switch {
	case cover < 10:
		return 30
	case cover < 25:
		return 50
	default:
		return 100
	}
}

// particleCeiling caps the composite under heavy haze, which obscures the
// event entirely.
func particleCeiling(pm25, aod float64) float64 {
	switch {
	case pm25 > 75 || aod > 1.5:
		return 40
	case pm25 > 55 || aod > 1.0:
		return 60
	default:
		return 100
	}
}

// Score computes the composite quality score for one atmospheric sample.
// The result is an integer in [0,100]. Inputs are not validated; upstream
// clamping is assumed (garbage in propagates).
func Score(s types.AtmosphericSample) int {
	base := CloudScore(s.CloudCover, s.CloudLow, s.CloudMid, s.CloudHigh)*weightCloud +
		ParticleScore(s.PM25, s.PM10, s.AOD)*weightParticle +
		VisibilityScore(s.VisibilityM)*weightVisibility +
		HumidityScore(s.Humidity)*weightHumidity

	ceiling := math.Min(cloudCeiling(s.CloudCover), particleCeiling(s.PM25, s.AOD))

	final := math.Min(base, ceiling)
	final = math.Max(0, math.Min(100, final))
	return int(math.Round(final))
}

// Predict scores one sample and packages the result with its rating, sunset
// time, and the originating factors. missingFields names measurements that
// were absent upstream and defaulted to zero; it is echoed on the prediction
// as a reduced-confidence marker.
func Predict(s types.AtmosphericSample, sunsetTime time.Time, missingFields []string) types.SunsetPrediction {
	score := Score(s)
	return types.SunsetPrediction{
		Score:         score,
		Rating:        types.RatingForScore(score),
		SunsetTime:    sunsetTime,
		Factors:       s,
		MissingFields: missingFields,
	}
}
