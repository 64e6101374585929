package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Config carries every scan knob. Each field has a command line flag
// counterpart; flags win over the config file.
type Config struct {
	JSON    bool  `yaml:"json"`
	Regex   bool  `yaml:"regex"`
	Entropy *bool `yaml:"entropy"`

	RulesFile string `yaml:"rules_file"`

	SinceCommit string `yaml:"since_commit"`
	MaxDepth    int    `yaml:"max_depth"`
	Branch      string `yaml:"branch"`

	IncludePathsFile   string `yaml:"include_paths_file"`
	ExcludePathsFile   string `yaml:"exclude_paths_file"`
	EntropyExcludeFile string `yaml:"entropy_exclude_file"`

	RepoPath string `yaml:"repo_path"`
	Cleanup  bool   `yaml:"cleanup"`
}

const DefaultMaxDepth = 1000000

func LoadConfig(bs []byte) (*Config, error) {
	c := &Config{}
	err := yaml.Unmarshal(bs, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// EntropyEnabled defaults to on when the config file says nothing.
func (c *Config) EntropyEnabled() bool {
	if c.Entropy == nil {
		return true
	}

	return *c.Entropy
}

// ParseBool accepts the spellings commonly fed to boolean flags. An empty
// value means true so that the entropy toggle defaults to on.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "", "yes", "true", "t", "y", "1":
		return true, nil
	case "no", "false", "f", "n", "0":
		return false, nil
	}

	return false, fmt.Errorf("boolean value expected, got %q", value)
}

// CompilePatternLines reads one regular expression per line. Blank lines and
// lines starting with "#" are ignored.
func CompilePatternLines(r io.Reader) ([]*regexp.Regexp, error) {
	var patterns []*regexp.Regexp

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pattern, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %s", line, err)
		}

		patterns = append(patterns, pattern)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// CompilePatternFile is CompilePatternLines over a file path; an empty path
// yields no patterns.
func CompilePatternFile(path string) ([]*regexp.Regexp, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return CompilePatternLines(file)
}
