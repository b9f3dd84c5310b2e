package config

import (
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func validConfig() *Config {
	return &Config{Resolution: 0.05}
}

func TestValidate(t *testing.T) {
	path := "services.slam.attributes.fake"

	t.Run("simplest valid config", func(t *testing.T) {
		test.That(t, validConfig().Validate(path), test.ShouldBeNil)
	})

	t.Run("missing resolution", func(t *testing.T) {
		cfg := &Config{}
		test.That(t, cfg.Validate(path), test.ShouldNotBeNil)
	})

	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"num_range_data below one", func(c *Config) { c.NumRangeData = intPtr(0) }},
		{"hit_probability not occupied-leaning", func(c *Config) { c.HitProbability = floatPtr(0.5) }},
		{"hit_probability above clamp", func(c *Config) { c.HitProbability = floatPtr(0.95) }},
		{"miss_probability not free-leaning", func(c *Config) { c.MissProbability = floatPtr(0.5) }},
		{"miss_probability below clamp", func(c *Config) { c.MissProbability = floatPtr(0.05) }},
		{"negative linear window", func(c *Config) { c.LinearSearchWindowM = floatPtr(-0.1) }},
		{"negative angular window", func(c *Config) { c.AngularSearchWindowRad = floatPtr(-0.1) }},
		{"negative translation weight", func(c *Config) { c.TranslationDeltaCostWeight = floatPtr(-1) }},
		{"negative rotation weight", func(c *Config) { c.RotationDeltaCostWeight = floatPtr(-1) }},
		{"non-positive grid size", func(c *Config) { c.GridSizeCells = intPtr(0) }},
		{"negative lidar frequency", func(c *Config) { c.LidarDataFrequencyHz = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			test.That(t, cfg.Validate(path), test.ShouldNotBeNil)
		})
	}
}

func TestGetOptionalParametersDefaults(t *testing.T) {
	logger := logging.NewTestLogger(t)
	params := GetOptionalParameters(validConfig(), logger)

	test.That(t, params.Resolution, test.ShouldEqual, 0.05)
	test.That(t, params.NumRangeData, test.ShouldEqual, DefaultNumRangeData)
	test.That(t, params.HitProbability, test.ShouldEqual, DefaultHitProbability)
	test.That(t, params.MissProbability, test.ShouldEqual, DefaultMissProbability)
	test.That(t, params.InsertFreeSpace, test.ShouldEqual, DefaultInsertFreeSpace)
	test.That(t, params.LinearSearchWindowM, test.ShouldEqual, DefaultLinearSearchWindowM)
	test.That(t, params.AmbiguityScoreRatio, test.ShouldEqual, DefaultAmbiguityScoreRatio)
	test.That(t, params.LidarDataFrequencyHz, test.ShouldEqual, DefaultLidarDataFrequencyHz)
	test.That(t, params.OdometerDataFrequencyHz, test.ShouldEqual, DefaultOdometerDataFrequencyHz)

	// 2 * 25 m / 0.05 m per cell.
	test.That(t, params.GridSizeCells, test.ShouldEqual, 1000)
}

func TestGetOptionalParametersOverrides(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := validConfig()
	cfg.NumRangeData = intPtr(3)
	cfg.HitProbability = floatPtr(0.7)
	cfg.MissProbability = floatPtr(0.4)
	cfg.InsertFreeSpace = boolPtr(false)
	cfg.GridSizeCells = intPtr(200)
	cfg.LidarDataFrequencyHz = 10
	cfg.AmbiguityDistanceM = floatPtr(0.5)

	params := GetOptionalParameters(cfg, logger)
	test.That(t, params.NumRangeData, test.ShouldEqual, 3)
	test.That(t, params.HitProbability, test.ShouldEqual, 0.7)
	test.That(t, params.MissProbability, test.ShouldEqual, 0.4)
	test.That(t, params.InsertFreeSpace, test.ShouldBeFalse)
	test.That(t, params.GridSizeCells, test.ShouldEqual, 200)
	test.That(t, params.LidarDataFrequencyHz, test.ShouldEqual, 10)
	test.That(t, params.AmbiguityDistanceM, test.ShouldEqual, 0.5)
}
