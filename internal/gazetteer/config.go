package gazetteer

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"pleiades-api/internal/index"
)

// 文档注释：客户端配置文件
// 背景：服务与命令行共用同一份 YAML；环境变量覆盖文件值，便于容器部署。
// 约束：指针字段为 nil 表示沿用默认值；ExpireAfter 使用 time.ParseDuration 语法。
type Config struct {
	BaseURL          string            `yaml:"base_url"`
	UserAgent        string            `yaml:"user_agent"`
	Headers          map[string]string `yaml:"headers"`
	RespectRobotsTxt *bool             `yaml:"respect_robots_txt"`
	CacheControl     *bool             `yaml:"cache_control"`
	ExpireAfter      string            `yaml:"expire_after"`
	CacheDir         *string           `yaml:"cache_dir"`
	MemoryEntries    *int              `yaml:"memory_entries"`
	Indexes          []IndexConfig     `yaml:"indexes"`
}

type IndexConfig struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// LoadConfig 读取 YAML 配置；未知字段视为错误
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c := &Config{}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return c, nil
}

// ApplyEnv 以 PLEIADES_* 环境变量覆盖配置；空值忽略
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PLEIADES_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("PLEIADES_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	for env, header := range map[string]string{"PLEIADES_FROM": "From", "PLEIADES_REFERER": "Referer"} {
		if v := os.Getenv(env); v != "" {
			if c.Headers == nil {
				c.Headers = make(map[string]string)
			}
			c.Headers[header] = v
		}
	}
	for env, dst := range map[string]**bool{"PLEIADES_RESPECT_ROBOTS": &c.RespectRobotsTxt, "PLEIADES_CACHE_CONTROL": &c.CacheControl} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", env, v)
		}
		*dst = &b
	}
	if v := os.Getenv("PLEIADES_EXPIRE_AFTER"); v != "" {
		c.ExpireAfter = v
	}
	if v, ok := os.LookupEnv("PLEIADES_CACHE_DIR"); ok {
		v = strings.TrimSpace(v)
		c.CacheDir = &v
	}
	return nil
}

// Options 将配置转换为构造选项
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.BaseURL))
	}
	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, WithHeaders(c.Headers))
	}
	if c.RespectRobotsTxt != nil {
		opts = append(opts, WithRespectRobotsTxt(*c.RespectRobotsTxt))
	}
	if c.CacheControl != nil {
		opts = append(opts, WithCacheControl(*c.CacheControl))
	}
	if c.ExpireAfter != "" {
		d, err := time.ParseDuration(c.ExpireAfter)
		if err != nil || d < 0 {
			return nil, errors.Wrapf(ErrInvalidConfig, "expire_after %q", c.ExpireAfter)
		}
		opts = append(opts, WithExpireAfter(d))
	}
	if c.CacheDir != nil {
		opts = append(opts, WithCacheDir(*c.CacheDir))
	}
	if c.MemoryEntries != nil {
		if *c.MemoryEntries < 0 {
			return nil, errors.Wrapf(ErrInvalidConfig, "memory_entries %d", *c.MemoryEntries)
		}
		opts = append(opts, WithMemoryEntries(*c.MemoryEntries))
	}
	for _, ic := range c.Indexes {
		sel, err := index.ParseSelector(ic.Selector)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "index %q: %v", ic.Name, err)
		}
		opts = append(opts, WithIndex(ic.Name, sel))
	}
	return opts, nil
}
