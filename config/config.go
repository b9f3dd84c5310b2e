// Package config implements attribute evaluation and defaulting for the
// local SLAM core.
package config

import (
	"math"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// Defaults applied by GetOptionalParameters when the corresponding
// attribute is unset.
const (
	DefaultNumRangeData               = 30
	DefaultHitProbability             = 0.55
	DefaultMissProbability            = 0.49
	DefaultInsertFreeSpace            = true
	DefaultLinearSearchWindowM        = 0.1
	DefaultAngularSearchWindowRad     = 0.35
	DefaultTranslationDeltaCostWeight = 0.1
	DefaultRotationDeltaCostWeight    = 0.1
	DefaultMinRangeM                  = 0.2
	DefaultMaxRangeM                  = 25.0
	DefaultMissingDataRayLengthM      = 25.0
	DefaultAmbiguityScoreRatio        = 0.95
	DefaultAmbiguityDistanceM         = 0.2
	DefaultLidarDataFrequencyHz       = 5
	DefaultOdometerDataFrequencyHz    = 20
)

// Config describes how to configure the local SLAM core.
type Config struct {
	Resolution                 float64  `json:"resolution"`
	NumRangeData               *int     `json:"num_range_data"`
	HitProbability             *float64 `json:"hit_probability"`
	MissProbability            *float64 `json:"miss_probability"`
	InsertFreeSpace            *bool    `json:"insert_free_space"`
	LinearSearchWindowM        *float64 `json:"linear_search_window"`
	AngularSearchWindowRad     *float64 `json:"angular_search_window"`
	TranslationDeltaCostWeight *float64 `json:"translation_delta_cost_weight"`
	RotationDeltaCostWeight    *float64 `json:"rotation_delta_cost_weight"`
	MinRangeM                  *float64 `json:"min_range"`
	MaxRangeM                  *float64 `json:"max_range"`
	MissingDataRayLengthM      *float64 `json:"missing_data_ray_length"`
	GridSizeCells              *int     `json:"grid_size_cells"`
	AmbiguityScoreRatio        *float64 `json:"ambiguity_score_ratio"`
	AmbiguityDistanceM         *float64 `json:"ambiguity_distance"`
	LidarDataFrequencyHz       int      `json:"lidar_data_frequency_hz"`
	OdometerDataFrequencyHz    int      `json:"odometer_data_frequency_hz"`
	DataDirectory              string   `json:"data_dir"`
}

// Validate rejects configurations that would let a component enter service
// in a degenerate state.
func (config *Config) Validate(path string) error {
	if config.Resolution <= 0 {
		return utils.NewConfigValidationError(path, errors.New("resolution must be positive"))
	}
	if config.NumRangeData != nil && *config.NumRangeData < 1 {
		return utils.NewConfigValidationError(path, errors.New("num_range_data must be at least 1"))
	}
	if config.HitProbability != nil && (*config.HitProbability <= 0.5 || *config.HitProbability > 0.9) {
		return utils.NewConfigValidationError(path, errors.New("hit_probability must be in (0.5, 0.9]"))
	}
	if config.MissProbability != nil && (*config.MissProbability < 0.1 || *config.MissProbability >= 0.5) {
		return utils.NewConfigValidationError(path, errors.New("miss_probability must be in [0.1, 0.5)"))
	}
	if config.LinearSearchWindowM != nil && *config.LinearSearchWindowM < 0 {
		return utils.NewConfigValidationError(path, errors.New("linear_search_window must not be negative"))
	}
	if config.AngularSearchWindowRad != nil && *config.AngularSearchWindowRad < 0 {
		return utils.NewConfigValidationError(path, errors.New("angular_search_window must not be negative"))
	}
	if config.TranslationDeltaCostWeight != nil && *config.TranslationDeltaCostWeight < 0 {
		return utils.NewConfigValidationError(path, errors.New("translation_delta_cost_weight must not be negative"))
	}
	if config.RotationDeltaCostWeight != nil && *config.RotationDeltaCostWeight < 0 {
		return utils.NewConfigValidationError(path, errors.New("rotation_delta_cost_weight must not be negative"))
	}
	if config.GridSizeCells != nil && *config.GridSizeCells <= 0 {
		return utils.NewConfigValidationError(path, errors.New("grid_size_cells must be positive"))
	}
	if config.LidarDataFrequencyHz < 0 {
		return utils.NewConfigValidationError(path, errors.New("lidar_data_frequency_hz must not be negative"))
	}
	if config.OdometerDataFrequencyHz < 0 {
		return utils.NewConfigValidationError(path, errors.New("odometer_data_frequency_hz must not be negative"))
	}
	return nil
}

// Params is the fully resolved configuration after defaulting.
type Params struct {
	Resolution                 float64
	NumRangeData               int
	HitProbability             float64
	MissProbability            float64
	InsertFreeSpace            bool
	LinearSearchWindowM        float64
	AngularSearchWindowRad     float64
	TranslationDeltaCostWeight float64
	RotationDeltaCostWeight    float64
	MinRangeM                  float64
	MaxRangeM                  float64
	MissingDataRayLengthM      float64
	GridSizeCells              int
	AmbiguityScoreRatio        float64
	AmbiguityDistanceM         float64
	LidarDataFrequencyHz       int
	OdometerDataFrequencyHz    int
	DataDirectory              string
}

// GetOptionalParameters sets any unset optional config parameters to their
// defaults and returns the resolved set.
func GetOptionalParameters(config *Config, logger logging.Logger) Params {
	params := Params{
		Resolution:                 config.Resolution,
		NumRangeData:               DefaultNumRangeData,
		HitProbability:             DefaultHitProbability,
		MissProbability:            DefaultMissProbability,
		InsertFreeSpace:            DefaultInsertFreeSpace,
		LinearSearchWindowM:        DefaultLinearSearchWindowM,
		AngularSearchWindowRad:     DefaultAngularSearchWindowRad,
		TranslationDeltaCostWeight: DefaultTranslationDeltaCostWeight,
		RotationDeltaCostWeight:    DefaultRotationDeltaCostWeight,
		MinRangeM:                  DefaultMinRangeM,
		MaxRangeM:                  DefaultMaxRangeM,
		MissingDataRayLengthM:      DefaultMissingDataRayLengthM,
		AmbiguityScoreRatio:        DefaultAmbiguityScoreRatio,
		AmbiguityDistanceM:         DefaultAmbiguityDistanceM,
		LidarDataFrequencyHz:       config.LidarDataFrequencyHz,
		OdometerDataFrequencyHz:    config.OdometerDataFrequencyHz,
		DataDirectory:              config.DataDirectory,
	}
	if config.NumRangeData != nil {
		params.NumRangeData = *config.NumRangeData
	} else {
		logger.Debugf("no num_range_data given, setting to default value of %d", DefaultNumRangeData)
	}
	if config.HitProbability != nil {
		params.HitProbability = *config.HitProbability
	}
	if config.MissProbability != nil {
		params.MissProbability = *config.MissProbability
	}
	if config.InsertFreeSpace != nil {
		params.InsertFreeSpace = *config.InsertFreeSpace
	}
	if config.LinearSearchWindowM != nil {
		params.LinearSearchWindowM = *config.LinearSearchWindowM
	}
	if config.AngularSearchWindowRad != nil {
		params.AngularSearchWindowRad = *config.AngularSearchWindowRad
	}
	if config.TranslationDeltaCostWeight != nil {
		params.TranslationDeltaCostWeight = *config.TranslationDeltaCostWeight
	}
	if config.RotationDeltaCostWeight != nil {
		params.RotationDeltaCostWeight = *config.RotationDeltaCostWeight
	}
	if config.MinRangeM != nil {
		params.MinRangeM = *config.MinRangeM
	}
	if config.MaxRangeM != nil {
		params.MaxRangeM = *config.MaxRangeM
	}
	if config.MissingDataRayLengthM != nil {
		params.MissingDataRayLengthM = *config.MissingDataRayLengthM
	}
	if config.AmbiguityScoreRatio != nil {
		params.AmbiguityScoreRatio = *config.AmbiguityScoreRatio
	}
	if config.AmbiguityDistanceM != nil {
		params.AmbiguityDistanceM = *config.AmbiguityDistanceM
	}
	if config.GridSizeCells != nil {
		params.GridSizeCells = *config.GridSizeCells
	} else {
		// Size submaps to cover the sensor's full range in every direction.
		params.GridSizeCells = int(math.Ceil(2.0 * params.MaxRangeM / params.Resolution))
		logger.Debugf("no grid_size_cells given, sizing submaps to %d cells from max_range", params.GridSizeCells)
	}
	if config.LidarDataFrequencyHz == 0 {
		params.LidarDataFrequencyHz = DefaultLidarDataFrequencyHz
		logger.Debugf("no lidar_data_frequency_hz given, setting to default value of %d", DefaultLidarDataFrequencyHz)
	}
	if config.OdometerDataFrequencyHz == 0 {
		params.OdometerDataFrequencyHz = DefaultOdometerDataFrequencyHz
	}
	return params
}
