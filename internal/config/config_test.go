package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range []string{"WORKOUT_WORKER_PORT", "WORKOUT_REMOTE_URL", "WORKOUT_USERNAME", "WORKOUT_SOURCE", "WORKOUT_DSN"} {
		s.T().Setenv(key, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(content string) {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".workoutdiary"), 0750))
	s.Require().NoError(os.WriteFile(SettingsPath(), []byte(content), 0600))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(SourceRemote, cfg.Source)
	s.Equal(20, cfg.ListPageSize)
	s.Equal(5, cfg.ChartPageSize)
	s.Equal(10, cfg.ChartCapacity)
	s.Equal(5, cfg.ChartWindow)
	s.Equal(300*time.Millisecond, cfg.Debounce())
	s.Equal(10*time.Second, cfg.FetchTimeout())
	s.Contains(cfg.DBPath, "workoutdiary.db")
	s.Empty(cfg.MuscleGroupFilters())
}

func (s *ConfigSuite) TestPaths() {
	s.Contains(DataDir(), ".workoutdiary")
	s.Contains(SettingsPath(), "settings.json")
	s.Contains(CatalogPath(), "muscle-groups.yaml")
}

func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())

	_, err = os.Stat(SettingsPath())
	s.Require().NoError(err)

	// The written defaults load back unchanged.
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(), cfg)

	// Second call keeps the existing file.
	s.writeSettings(`{"WORKOUT_USERNAME": "kept"}`)
	s.Require().NoError(EnsureAll())
	cfg, err = Load()
	s.Require().NoError(err)
	s.Equal("kept", cfg.Username)
}

func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name         string
		settings     string
		wantPort     int
		wantPageSize int
		wantSource   string
	}{
		{
			name:         "no settings file",
			wantPort:     DefaultWorkerPort,
			wantPageSize: 20,
			wantSource:   SourceRemote,
		},
		{
			name:         "custom port",
			settings:     `{"WORKOUT_WORKER_PORT": 38888}`,
			wantPort:     38888,
			wantPageSize: 20,
			wantSource:   SourceRemote,
		},
		{
			name: "comments and trailing commas",
			settings: `{
				// offline mode
				"WORKOUT_SOURCE": "local",
				"WORKOUT_LIST_PAGE_SIZE": 50,
			}`,
			wantPort:     DefaultWorkerPort,
			wantPageSize: 50,
			wantSource:   SourceLocal,
		},
		{
			name:         "invalid JSON returns defaults",
			settings:     `{invalid}`,
			wantPort:     DefaultWorkerPort,
			wantPageSize: 20,
			wantSource:   SourceRemote,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_ = os.Remove(SettingsPath())
			if tt.settings != "" {
				s.writeSettings(tt.settings)
			}

			cfg, err := Load()
			s.Require().NoError(err)
			s.Equal(tt.wantPort, cfg.WorkerPort)
			s.Equal(tt.wantPageSize, cfg.ListPageSize)
			s.Equal(tt.wantSource, cfg.Source)
		})
	}
}

func (s *ConfigSuite) TestLoad_InvalidSource() {
	s.writeSettings(`{"WORKOUT_SOURCE": "carrier-pigeon"}`)

	_, err := Load()
	s.ErrorIs(err, errInvalidSource)
}

func (s *ConfigSuite) TestLoad_EnvOverrides() {
	s.writeSettings(`{"WORKOUT_REMOTE_URL": "http://file/", "WORKOUT_WORKER_PORT": 1111}`)
	s.T().Setenv("WORKOUT_REMOTE_URL", "http://env/")
	s.T().Setenv("WORKOUT_WORKER_PORT", "2222")
	s.T().Setenv("WORKOUT_DSN", "postgres://diary@localhost/diary")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("http://env/", cfg.RemoteURL)
	s.Equal(2222, cfg.WorkerPort)
	s.Equal("postgres://diary@localhost/diary", cfg.DatabaseDSN())
}

func (s *ConfigSuite) TestMuscleGroupFilters() {
	s.writeSettings(`{"WORKOUT_DEFAULT_MUSCLE_GROUPS": " Chest , Triceps,,"}`)

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal([]string{"Chest", "Triceps"}, cfg.MuscleGroupFilters())
}

func TestGetWorkerPort_WithEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Setenv("WORKOUT_WORKER_PORT", "45678")
	assert.Equal(t, 45678, GetWorkerPort())

	t.Setenv("WORKOUT_WORKER_PORT", "not-a-number")
	assert.Greater(t, GetWorkerPort(), 0)

	t.Setenv("WORKOUT_WORKER_PORT", "0")
	assert.Greater(t, GetWorkerPort(), 0)
}

func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: "Chest", expected: []string{"Chest"}},
		{name: "values with spaces", input: " Chest , Back ", expected: []string{"Chest", "Back"}},
		{name: "empty values filtered", input: "Chest,,Back,,", expected: []string{"Chest", "Back"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}
