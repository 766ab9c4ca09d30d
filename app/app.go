package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

const (
	cfgName     = "application"
	testCfgName = "application_test"
	cfgType     = "yaml"
)

var (
	cfg  *viper.Viper
	once sync.Once
)

// Config loads the application configuration once per process.
//
// Rules:
//  1. Under `go test` application_test.yml wins over application.yml.
//  2. The module root (nearest go.mod) and its ./config are searched first, then the working
//     directory and its ./config.
//  3. Environment variables prefixed with RETAIL_ override file values
//     (RETAIL_FACADE_REMOTE=true overrides facade.remote).
func Config() mo.Result[*viper.Viper] {
	once.Do(func() {
		cfg, _ = loadViper()
	})
	return lo.If(cfg == nil, mo.Err[*viper.Viper](fmt.Errorf("can not find %s.yml", cfgName))).Else(mo.Ok(cfg))
}

func loadViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(cfgType)
	v.SetEnvPrefix("retail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaults(v)

	name := lo.Ternary(isTestProcess(), testCfgName, cfgName)
	for _, dir := range searchPaths() {
		cand := filepath.Join(dir, name+".yml")
		if _, err := os.Stat(cand); err != nil {
			continue
		}
		v.SetConfigFile(cand)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", cand, err)
		}
		return v, nil
	}
	// a missing file is fine, defaults and env still apply
	v.SetConfigName(name)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}

// searchPaths returns the config directories in lookup order.
func searchPaths() []string {
	var dirs []string
	cwd, err := os.Getwd()
	if err != nil {
		return []string{".", "config"}
	}
	if root, ok := findProjectRoot(cwd); ok {
		dirs = append(dirs, root, filepath.Join(root, "config"))
	}
	dirs = append(dirs, cwd, filepath.Join(cwd, "config"))
	return lo.Uniq(dirs)
}

// findProjectRoot walks upward from start until it finds a directory containing a go.mod.
func findProjectRoot(start string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// isTestProcess detects whether we are running under `go test`.
func isTestProcess() bool {
	for _, a := range os.Args {
		if strings.HasPrefix(a, "-test.") {
			return true
		}
	}
	const maxFrames = 256
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if strings.HasSuffix(f.File, "_test.go") {
			return true
		}
		if !more {
			break
		}
	}
	return false
}
