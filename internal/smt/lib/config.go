package lib

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/denormal/go-gitignore"
	"gopkg.in/yaml.v2"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// --- Constants ---

// SmtIgnoreFilename is the file holding user-defined ignore patterns for a
// build root.
const SmtIgnoreFilename = ".smtignore"

// ConfigFilename is the optional per-directory build configuration file.
const ConfigFilename = "smt.yaml"

// defaultIgnorePatterns are always excluded from a build when ignore rules
// are enabled.
var defaultIgnorePatterns = []string{
	".git/**",
	SmtIgnoreFilename,
	ConfigFilename,
}

var (
	// ignoreCache stores compiled matchers per canonical build root. Access
	// is serialized by a global mutex; the gitignore library is not safe for
	// concurrent use.
	ignoreCache = make(map[string]gitignore.GitIgnore)
	cacheMutex  = &sync.Mutex{}
)

// Config is the optional smt.yaml file in a build root. Zero values fall
// back to the built-in defaults.
type Config struct {
	ChunkSize int  `yaml:"chunk_size"`
	Timestamp bool `yaml:"timestamp"`
	Ignore    bool `yaml:"ignore"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{ChunkSize: types.DefaultChunkSize}
}

// LoadConfig reads smt.yaml from the build root, returning defaults when the
// file does not exist.
func LoadConfig(baseDir string) (Config, error) {
	cfg := DefaultConfig()

	content, err := os.ReadFile(filepath.Join(baseDir, ConfigFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, types.NewDagError(types.ErrIo, "", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return DefaultConfig(), types.NewDagError(types.ErrFormat, "", err)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = types.DefaultChunkSize
	}
	return cfg, nil
}

// IsPathIgnored checks whether a path under baseDir is excluded by the
// default patterns or the root's .smtignore file.
func IsPathIgnored(baseDir, path string) bool {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	canonicalBaseDir, err := filepath.EvalSymlinks(baseDir)
	if err != nil {
		canonicalBaseDir = baseDir
	}

	matcher, found := ignoreCache[canonicalBaseDir]
	if !found {
		matcher = loadIgnoreMatcher(canonicalBaseDir)
		ignoreCache[canonicalBaseDir] = matcher
	}

	canonicalPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		canonicalPath = path
	}

	relativePath, err := filepath.Rel(canonicalBaseDir, canonicalPath)
	if err != nil {
		return false
	}
	// The gitignore library expects forward-slash separators.
	slashedPath := filepath.ToSlash(relativePath)

	match := matcher.Match(slashedPath)
	if match == nil {
		match = matcher.Match(canonicalPath)
	}
	if match == nil {
		return false
	}
	return match.Ignore()
}

// loadIgnoreMatcher compiles the default patterns plus the root's .smtignore
// file into a matcher.
func loadIgnoreMatcher(baseDir string) gitignore.GitIgnore {
	rawPatterns := make([]string, len(defaultIgnorePatterns))
	copy(rawPatterns, defaultIgnorePatterns)

	ignoreFilePath := filepath.Join(baseDir, SmtIgnoreFilename)
	if content, err := os.ReadFile(ignoreFilePath); err == nil {
		rawPatterns = append(rawPatterns, strings.Split(string(content), "\n")...)
	}

	var finalPatterns []string
	for _, p := range rawPatterns {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.ReplaceAll(trimmed, "\\", "/")
		if strings.HasSuffix(trimmed, "/") && !strings.HasSuffix(trimmed, "**/") {
			trimmed = trimmed + "**"
		}
		finalPatterns = append(finalPatterns, trimmed)
	}

	matcher := gitignore.New(
		strings.NewReader(strings.Join(finalPatterns, "\n")),
		baseDir,
		func(err gitignore.Error) bool { return false },
	)
	if matcher == nil {
		return gitignore.New(strings.NewReader(""), "", nil)
	}
	return matcher
}

// ResetIgnoreState clears the ignore cache. This is used for testing.
func ResetIgnoreState() {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()
	ignoreCache = make(map[string]gitignore.GitIgnore)
}
