package am

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/teranos/strata/errors"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("expected default database path %q, got %q", DefaultDatabasePath, cfg.Database.Path)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("expected memory cache backend, got %q", cfg.Cache.Backend)
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.CacheTTL())
	}
	if cfg.Similarity.FieldWeight != 0.4 || cfg.Similarity.UseExistingThreshold != 0.8 {
		t.Errorf("unexpected similarity defaults: %+v", cfg.Similarity)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxLimit != 100 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestDefaults_MatchesViperDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.GetRedisPrefix() != DefaultRedisPrefix {
		t.Errorf("expected redis prefix %q, got %q", DefaultRedisPrefix, cfg.GetRedisPrefix())
	}
	if cfg.GetSweepSampleSize() != DefaultSweepSampleSize {
		t.Errorf("expected sweep sample size %d, got %d", DefaultSweepSampleSize, cfg.GetSweepSampleSize())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty database path is valid", func(c *Config) { c.Database.Path = "" }, false},
		{"zero ttl is valid (default)", func(c *Config) { c.Cache.TTLSeconds = 0 }, false},
		{"negative ttl is invalid", func(c *Config) { c.Cache.TTLSeconds = -1 }, true},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheBackendRedis; c.Cache.Redis.Addr = "" }, true},
		{"redis with addr", func(c *Config) { c.Cache.Backend = CacheBackendRedis }, false},
		{"weights within tolerance", func(c *Config) { c.Similarity.FieldWeight = 0.4000000001 }, false},
		{"weights not summing to one", func(c *Config) { c.Similarity.FieldWeight = 0.5 }, true},
		{"negative weight", func(c *Config) {
			c.Similarity.TypeWeight, c.Similarity.KeywordWeight = -0.1, 0.7
		}, true},
		{"variant equals use_existing", func(c *Config) { c.Similarity.VariantThreshold = 0.8 }, true},
		{"use_existing above one", func(c *Config) { c.Similarity.UseExistingThreshold = 1.2 }, true},
		{"zero variant is valid", func(c *Config) { c.Similarity.VariantThreshold = 0 }, false},
		{"negative search limit", func(c *Config) { c.Search.DefaultLimit = -1 }, true},
		{"default above max", func(c *Config) { c.Search.DefaultLimit = 500 }, true},
		{"negative sweep rate", func(c *Config) { c.Sweep.MaxChecksPerSecond = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsValidationError(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	t.Run("walks up to am.toml", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test1", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)
		os.WriteFile(filepath.Join(tmpDir, "test1", ConfigFileName), []byte(""), DefaultFilePermissions)

		t.Chdir(subDir)

		result := findProjectConfig()
		if result == "" {
			t.Fatal("expected to find config file")
		}
		if !filepath.IsAbs(result) {
			t.Error("expected absolute path")
		}
		if filepath.Base(result) != ConfigFileName {
			t.Errorf("expected %s, got %s", ConfigFileName, filepath.Base(result))
		}
	})

	t.Run("no config found", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test2", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)

		t.Chdir(subDir)

		// An am.toml above the temp dir belongs to the host, not this test
		if result := findProjectConfig(); strings.HasPrefix(result, tmpDir) {
			t.Errorf("expected no config under %s, got %s", tmpDir, result)
		}
	})
}

func TestLoad_MergesSourcesInOrder(t *testing.T) {
	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	project := filepath.Join(tmpDir, "project")
	os.MkdirAll(filepath.Join(home, ".strata"), DefaultDirPermissions)
	os.MkdirAll(project, DefaultDirPermissions)

	system := filepath.Join(tmpDir, "system.toml")
	os.WriteFile(system, []byte("[database]\npath = \"system.db\"\n[search]\nmax_limit = 50\n"), DefaultFilePermissions)
	os.WriteFile(filepath.Join(home, ".strata", ConfigFileName), []byte("[database]\npath = \"user.db\"\n[cache]\nttl_seconds = 60\n"), DefaultFilePermissions)
	os.WriteFile(filepath.Join(project, ConfigFileName), []byte("[database]\npath = \"project.db\"\n"), DefaultFilePermissions)

	oldSystem := systemConfigPath
	systemConfigPath = system
	t.Cleanup(func() { systemConfigPath = oldSystem; Reset() })

	t.Setenv("HOME", home)
	t.Setenv("STRATA_SEARCH_DEFAULT_LIMIT", "7")
	t.Chdir(project)
	Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Database.Path != "project.db" {
		t.Errorf("project config should win, got %q", cfg.Database.Path)
	}
	if cfg.Cache.TTLSeconds != 60 {
		t.Errorf("user config should set ttl, got %d", cfg.Cache.TTLSeconds)
	}
	if cfg.Search.MaxLimit != 50 {
		t.Errorf("system config should set max_limit, got %d", cfg.Search.MaxLimit)
	}
	if cfg.Search.DefaultLimit != 7 {
		t.Errorf("environment should override files, got %d", cfg.Search.DefaultLimit)
	}

	info, err := GetConfigIntrospection()
	if err != nil {
		t.Fatalf("GetConfigIntrospection() failed: %v", err)
	}
	want := map[string]ConfigSource{
		"database.path":        SourceProject,
		"cache.ttl_seconds":    SourceUser,
		"search.max_limit":     SourceSystem,
		"search.default_limit": SourceEnvironment,
		"cache.backend":        SourceDefault,
	}
	got := map[string]ConfigSource{}
	for _, s := range info.Settings {
		got[s.Key] = s.Source
	}
	for key, source := range want {
		if got[key] != source {
			t.Errorf("%s: expected source %s, got %s", key, source, got[key])
		}
	}
}

func TestIntrospection_RedactsSecrets(t *testing.T) {
	introspection := &ConfigIntrospection{}
	flattenSettingsWithSources(map[string]interface{}{
		"cache": map[string]interface{}{
			"redis": map[string]interface{}{"password": "hunter2", "addr": "localhost:6379"},
		},
	}, "", introspection, nil)

	for _, s := range introspection.Settings {
		if s.Key == "cache.redis.password" && s.Value != redacted {
			t.Errorf("password should be redacted, got %v", s.Value)
		}
		if s.Key == "cache.redis.addr" && s.Value != "localhost:6379" {
			t.Errorf("addr should be shown, got %v", s.Value)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	os.WriteFile(path, []byte("[cache]\nbackend = \"redis\"\n[cache.redis]\naddr = \"cache:6379\"\n"), DefaultFilePermissions)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if cfg.Cache.Backend != CacheBackendRedis || cfg.Cache.Redis.Addr != "cache:6379" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.Redis.Prefix != DefaultRedisPrefix {
		t.Errorf("defaults should fill unset keys, got prefix %q", cfg.Cache.Redis.Prefix)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSave_RoundTripWithBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := Defaults()
	cfg.Database.Path = "first.db"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	cfg.Database.Path = "second.db"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if loaded.Database.Path != "second.db" {
		t.Errorf("expected second.db, got %q", loaded.Database.Path)
	}
	if loaded.Similarity != cfg.Similarity {
		t.Errorf("similarity did not round-trip: %+v vs %+v", loaded.Similarity, cfg.Similarity)
	}

	backup, err := LoadFromFile(path + ".back1")
	if err != nil {
		t.Fatalf("expected .back1 backup: %v", err)
	}
	if backup.Database.Path != "first.db" {
		t.Errorf("backup should hold the previous config, got %q", backup.Database.Path)
	}

	bad := Defaults()
	bad.Similarity.FieldWeight = 0.9
	if err := Save(path, bad); err == nil {
		t.Error("expected Save to reject an invalid config")
	}
}
