package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/pokemon-memory-game/game/engine"
	"github.com/wricardo/pokemon-memory-game/game/service"
)

func createValidConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:          "Test Config",
		Description:   "Test configuration",
		GridSize:      4,
		PlayerCount:   1,
		PowerUpChance: 0.1,
	}
}

func writeConfigFile(t *testing.T, dir, name string, config *engine.GameConfig) {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		easy := createValidConfig()
		easy.Name = "Easy"
		writeConfigFile(t, dir, "easy", easy)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().Name != "Easy" {
			t.Errorf("Expected easy preset as default, got %q", manager.GetDefault().Name)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		if err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in board", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed even without config files, got error: %v", err)
		}

		def := manager.GetDefault()
		if def == nil {
			t.Fatal("Expected default config to be available")
		}
		if def.GridSize != 4 || def.PlayerCount != 1 {
			t.Errorf("Expected 4x4 solo default, got %dx%d with %d players", def.GridSize, def.GridSize, def.PlayerCount)
		}
		if err := engine.ValidateGameConfig(def); err != nil {
			t.Errorf("Built-in default should be valid: %v", err)
		}
	})

	t.Run("first valid preset when easy is missing", func(t *testing.T) {
		dir := t.TempDir()
		hard := createValidConfig()
		hard.Name = "Hard"
		hard.GridSize = 8
		writeConfigFile(t, dir, "hard", hard)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if manager.GetDefault().Name != "Hard" {
			t.Errorf("Expected hard preset as default, got %q", manager.GetDefault().Name)
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	medium := createValidConfig()
	medium.Name = "Medium"
	medium.GridSize = 6
	writeConfigFile(t, dir, "medium", medium)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("load existing config", func(t *testing.T) {
		config, err := manager.LoadConfig("medium")
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if config.Name != "Medium" || config.GridSize != 6 {
			t.Errorf("Unexpected config %+v", config)
		}
	})

	t.Run("load with .json extension", func(t *testing.T) {
		config, err := manager.LoadConfig("medium.json")
		if err != nil {
			t.Fatalf("Failed to load config with extension: %v", err)
		}
		if config.Name != "Medium" {
			t.Errorf("Expected config name 'Medium', got '%s'", config.Name)
		}
	})

	t.Run("load from cache", func(t *testing.T) {
		config1, _ := manager.LoadConfig("medium")
		config2, err := manager.LoadConfig("medium")
		if err != nil {
			t.Fatalf("Failed to load config from cache: %v", err)
		}
		if config1 != config2 {
			t.Error("Expected config to be loaded from cache")
		}
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := manager.LoadConfig("non-existent")
		if err != ErrConfigNotFound {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
		if !errors.Is(err, service.ErrConfigNotFound) {
			t.Error("Expected config.ErrConfigNotFound to match service.ErrConfigNotFound")
		}
	})

	t.Run("path traversal is not found", func(t *testing.T) {
		for _, name := range []string{"../medium", "sub/medium", "", ".."} {
			if _, err := manager.LoadConfig(name); err != ErrConfigNotFound {
				t.Errorf("LoadConfig(%q): expected ErrConfigNotFound, got %v", name, err)
			}
		}
	})

	t.Run("load odd grid size", func(t *testing.T) {
		odd := createValidConfig()
		odd.GridSize = 5
		writeConfigFile(t, dir, "odd", odd)

		_, err := manager.LoadConfig("odd")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
		if !errors.Is(err, engine.ErrInvalidConfig) {
			t.Errorf("Expected engine.ErrInvalidConfig to be wrapped, got %v", err)
		}
	})

	t.Run("load malformed JSON", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "malformed.json"), []byte("{invalid json"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := manager.LoadConfig("malformed")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig for malformed JSON, got %v", err)
		}
	})
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()

	easy := createValidConfig()
	easy.Name = "Easy"
	writeConfigFile(t, dir, "easy", easy)

	duel := createValidConfig()
	duel.Name = "Duel"
	duel.PlayerCount = 2
	writeConfigFile(t, dir, "duel", duel)

	hard := createValidConfig()
	hard.Name = "Hard"
	hard.GridSize = 8
	writeConfigFile(t, dir, "hard", hard)

	bad := createValidConfig()
	bad.PlayerCount = 3
	writeConfigFile(t, dir, "bad", bad)

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)
	os.Mkdir(filepath.Join(dir, "nested.json"), 0755)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	configs, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list configs: %v", err)
	}

	if len(configs) != 3 {
		t.Fatalf("Expected 3 valid configs, got %d", len(configs))
	}

	want := []struct {
		id         string
		players    int
		difficulty string
	}{
		{"duel", 2, "Easy"},
		{"easy", 1, "Easy"},
		{"hard", 1, "Hard"},
	}
	for i, w := range want {
		got := configs[i]
		if got.ConfigID != w.id || got.Filename != w.id+".json" {
			t.Errorf("configs[%d] = %s (%s), want %s", i, got.ConfigID, got.Filename, w.id)
		}
		if got.PlayerCount != w.players {
			t.Errorf("%s: expected %d players, got %d", w.id, w.players, got.PlayerCount)
		}
		if got.Difficulty != w.difficulty {
			t.Errorf("%s: expected difficulty %s, got %s", w.id, w.difficulty, got.Difficulty)
		}
	}
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "easy", createValidConfig())
	duel := createValidConfig()
	duel.Name = "Duel"
	duel.PlayerCount = 2
	writeConfigFile(t, dir, "duel", duel)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.SetDefault("duel"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.GetDefault().Name != "Duel" {
		t.Errorf("Expected Duel as default, got %s", manager.GetDefault().Name)
	}

	if err := manager.SetDefault("missing"); err != ErrConfigNotFound {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
	if manager.GetDefault().Name != "Duel" {
		t.Error("Failed SetDefault should keep the previous default")
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("save and reload", func(t *testing.T) {
		cfg := createValidConfig()
		cfg.Name = "Saved"
		cfg.GridSize = 6
		if err := manager.SaveConfig("saved", cfg); err != nil {
			t.Fatalf("SaveConfig failed: %v", err)
		}

		loaded, err := engine.LoadGameConfig(filepath.Join(dir, "saved.json"))
		if err != nil {
			t.Fatalf("Saved file is not a valid config: %v", err)
		}
		if loaded.Name != "Saved" || loaded.GridSize != 6 {
			t.Errorf("Unexpected saved config %+v", loaded)
		}

		cached, err := manager.LoadConfig("saved")
		if err != nil || cached.GridSize != 6 {
			t.Errorf("Expected saved config in cache, got %+v, %v", cached, err)
		}
	})

	t.Run("reject invalid config", func(t *testing.T) {
		cfg := createValidConfig()
		cfg.GridSize = 3
		if err := manager.SaveConfig("invalid", cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "invalid.json")); !os.IsNotExist(err) {
			t.Error("Invalid config should not be written")
		}
	})

	t.Run("reject path names", func(t *testing.T) {
		if err := manager.SaveConfig("../escape", createValidConfig()); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestManager_RefreshCache(t *testing.T) {
	dir := t.TempDir()
	easy := createValidConfig()
	easy.Name = "Easy"
	writeConfigFile(t, dir, "easy", easy)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	before, _ := manager.LoadConfig("easy")

	easy.Description = "Changed on disk"
	writeConfigFile(t, dir, "easy", easy)

	cached, _ := manager.LoadConfig("easy")
	if cached.Description == "Changed on disk" {
		t.Fatal("Expected stale cached config before refresh")
	}

	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache failed: %v", err)
	}

	after, _ := manager.LoadConfig("easy")
	if after == before || after.Description != "Changed on disk" {
		t.Error("Expected config to be reloaded from disk")
	}
	if manager.GetDefault().Description != "Changed on disk" {
		t.Error("Expected default to be reloaded")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "easy", createValidConfig())
	for _, name := range []string{"a", "b", "c"} {
		writeConfigFile(t, dir, name, createValidConfig())
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := []string{"a", "b", "c", "easy"}[i%4]
			if _, err := manager.LoadConfig(name); err != nil {
				errs <- err
			}
			if i%10 == 0 {
				if _, err := manager.ListConfigs(); err != nil {
					errs <- err
				}
			}
			manager.GetDefault()
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent access error: %v", err)
	}
}
