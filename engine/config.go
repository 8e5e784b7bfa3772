package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/boypt/u2convert/tracker"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configName     = "u2convert"
	keyPlaceholder = "PASTE YOUR URL HERE!"
)

var (
	ErrNoKeyFile      = errors.New("key file not found")
	ErrPlaceholderKey = errors.New("key file still holds the placeholder")
)

type Config struct {
	InputDirectory  string `yaml:"InputDirectory"`
	OutputDirectory string `yaml:"OutputDirectory"`
	KeyFile         string `yaml:"KeyFile"`
	TrackerDomain   string `yaml:"TrackerDomain"`
	SecureEndpoint  string `yaml:"SecureEndpoint"`
	MaxTorrentSize  string `yaml:"MaxTorrentSize"`
	Debug           bool   `yaml:"Debug"`

	file string
}

// InitConf loads the configuration from specPath, or from the usual search
// paths when specPath does not exist. A missing config file is written out
// with the defaults.
func InitConf(specPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.AddConfigPath("/etc/u2convert/")
	v.AddConfigPath("$HOME/.u2convert")
	v.AddConfigPath(".")

	v.SetDefault("InputDirectory", "./Origin")
	v.SetDefault("OutputDirectory", "./New")
	v.SetDefault("KeyFile", "./apikey.txt")
	v.SetDefault("TrackerDomain", tracker.DefaultDomain)
	v.SetDefault("SecureEndpoint", tracker.DefaultEndpoint)
	v.SetDefault("MaxTorrentSize", "10MB")
	v.SetDefault("Debug", false)

	v.SetEnvPrefix("U2CONVERT")
	v.AutomaticEnv()

	// user specific config path
	if stat, err := os.Stat(specPath); err == nil && !stat.IsDir() {
		v.SetConfigFile(specPath)
	}

	configExists := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		configExists = false
		if specPath == "" {
			specPath = "./" + configName + ".yaml"
		}
		v.SetConfigFile(specPath)
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("malformed config: %w", err)
	}
	c.file = v.ConfigFileUsed()
	if err := c.NormalizeConfigDir(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	log.Println("[config] selected config file:", c.file)
	if !configExists {
		if err := c.WriteYaml(); err != nil {
			log.Warnf("[config] unable to write %s: %v", c.file, err)
		} else {
			log.Println("[config] default config written:", c.file)
		}
	}
	return c, nil
}

// NormalizeConfigDir turns every configured path absolute.
func (c *Config) NormalizeConfigDir() error {
	for _, p := range []*string{&c.InputDirectory, &c.OutputDirectory, &c.KeyFile} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

func (c *Config) Validate() error {
	if c.InputDirectory == "" || c.OutputDirectory == "" {
		return errors.New("input and output directories are required")
	}
	if c.InputDirectory == c.OutputDirectory {
		return fmt.Errorf("output directory must differ from input directory %s", c.InputDirectory)
	}
	if strings.TrimSpace(c.TrackerDomain) == "" {
		return errors.New("empty TrackerDomain")
	}
	u, err := url.Parse(c.SecureEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid SecureEndpoint %q", c.SecureEndpoint)
	}
	if _, err := parseSize(c.MaxTorrentSize); err != nil {
		return fmt.Errorf("invalid MaxTorrentSize %q: %w", c.MaxTorrentSize, err)
	}
	return nil
}

// MaxSize is the largest input accepted, 0 meaning unlimited.
func (c *Config) MaxSize() int64 {
	n, _ := parseSize(c.MaxTorrentSize)
	return n
}

func (c *Config) WriteYaml() error {
	d, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.file, d, 0644)
}

// ReadKeyFile returns the request URL, api key included, stored on the
// first line of the key file.
func (c *Config) ReadKeyFile() (string, error) {
	f, err := os.Open(c.KeyFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoKeyFile
	} else if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var line string
	if sc.Scan() {
		line = strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if line == "" || line == keyPlaceholder {
		return "", ErrPlaceholderKey
	}
	if u, err := url.Parse(line); err != nil || u.Host == "" {
		return "", fmt.Errorf("key file %s: not a request url", c.KeyFile)
	}
	return line, nil
}

// WriteKeyPlaceholder creates the key file for the user to fill in.
func (c *Config) WriteKeyPlaceholder() error {
	return os.WriteFile(c.KeyFile, []byte(keyPlaceholder+"\n"), 0600)
}
