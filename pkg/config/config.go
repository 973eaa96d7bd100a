package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// FlexibleInt64Slice is an []int64 that also accepts JSON strings,
// so admin_ids can contain both 12345 and "12345".
type FlexibleInt64Slice []int64

func (f *FlexibleInt64Slice) UnmarshalJSON(data []byte) error {
	// Try []int64 first
	var ii []int64
	if err := json.Unmarshal(data, &ii); err == nil {
		*f = ii
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case float64:
			result = append(result, int64(val))
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", val, err)
			}
			result = append(result, n)
		default:
			return fmt.Errorf("invalid id value %v", v)
		}
	}
	*f = result
	return nil
}

// UnmarshalText lets env overrides supply comma-separated IDs,
// e.g. GROUPWARDEN_MODERATION_ADMIN_IDS=123,456.
func (f *FlexibleInt64Slice) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*f = nil
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", p, err)
		}
		result = append(result, n)
	}
	*f = result
	return nil
}

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	LLM        LLMConfig        `json:"llm"`
	Moderation ModerationConfig `json:"moderation"`
	Reports    ReportsConfig    `json:"reports"`
	Logging    LoggingConfig    `json:"logging"`
}

type TelegramConfig struct {
	Token string `env:"GROUPWARDEN_TELEGRAM_TOKEN" json:"token"`
}

type LLMConfig struct {
	Provider       string `env:"GROUPWARDEN_LLM_PROVIDER"        json:"provider"`
	APIKey         string `env:"GROUPWARDEN_LLM_API_KEY"         json:"api_key"`
	APIBase        string `env:"GROUPWARDEN_LLM_API_BASE"        json:"api_base"`
	Model          string `env:"GROUPWARDEN_LLM_MODEL"           json:"model"`
	TimeoutSeconds int    `env:"GROUPWARDEN_LLM_TIMEOUT_SECONDS" json:"timeout_seconds"`
	MaxInputChars  int    `env:"GROUPWARDEN_LLM_MAX_INPUT_CHARS" json:"max_input_chars"`
	Prompt         string `json:"prompt,omitempty"`
	UsernamePrompt string `json:"username_prompt,omitempty"`
}

type ModerationConfig struct {
	ConfidenceThreshold float64            `env:"GROUPWARDEN_MODERATION_CONFIDENCE_THRESHOLD" json:"confidence_threshold"`
	AdminIDs            FlexibleInt64Slice `env:"GROUPWARDEN_MODERATION_ADMIN_IDS"            json:"admin_ids"`
	SystemIDs           FlexibleInt64Slice `env:"GROUPWARDEN_MODERATION_SYSTEM_IDS"           json:"system_ids"`
	AllowKeywords       []string           `env:"GROUPWARDEN_MODERATION_ALLOW_KEYWORDS"       json:"allow_keywords"`
	BanOnDelete         bool               `env:"GROUPWARDEN_MODERATION_BAN_ON_DELETE"        json:"ban_on_delete"`
	NotifyTTLSeconds    int                `env:"GROUPWARDEN_MODERATION_NOTIFY_TTL_SECONDS"   json:"notify_ttl_seconds"`
	CheckUsernames      bool               `env:"GROUPWARDEN_MODERATION_CHECK_USERNAMES"      json:"check_usernames"`
}

type ReportsConfig struct {
	Enabled     bool   `env:"GROUPWARDEN_REPORTS_ENABLED"      json:"enabled"`
	Cron        string `env:"GROUPWARDEN_REPORTS_CRON"         json:"cron"`
	WindowHours int    `env:"GROUPWARDEN_REPORTS_WINDOW_HOURS" json:"window_hours"`
}

type LoggingConfig struct {
	Level string `env:"GROUPWARDEN_LOG_LEVEL" json:"level"`
	File  string `env:"GROUPWARDEN_LOG_FILE"  json:"file,omitempty"`
}

// SpamPrompt is the default classification prompt. Placeholders are filled
// per message before the request is sent.
const SpamPrompt = `请分析以下Telegram群组消息是否为垃圾消息（广告、诈骗、色情、赌博、恶意推广等）。

消息内容：
{message_text}

发送者信息：
- 用户名: {username}
- 用户ID: {user_id}
- 是否新成员: {is_new_member}

风险指标：
{risk_indicators}

请以JSON格式返回分析结果，包含以下字段：
- is_spam: 布尔值，是否为垃圾消息
- confidence: 0到1之间的数字，置信度
- reason: 字符串，判断理由
- category: 字符串，垃圾消息类型（advertising/fraud/adult/gambling/promotion/other），非垃圾消息则为none

只返回JSON，不要包含其他内容。`

// UsernamePrompt is the default join-time username screening prompt.
const UsernamePrompt = `请分析以下Telegram用户名是否违规（冒充官方、广告引流、色情暗示、诈骗相关等）。

用户名: {username}
昵称: {full_name}
入群消息: {join_message}

请以JSON格式返回分析结果，包含以下字段：
- is_violation: 布尔值，用户名是否违规
- confidence: 0到1之间的数字，置信度
- reason: 字符串，判断理由

只返回JSON，不要包含其他内容。`

func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 8,
			MaxInputChars:  2000,
		},
		Moderation: ModerationConfig{
			ConfidenceThreshold: 0.7,
			BanOnDelete:         true,
			NotifyTTLSeconds:    10,
		},
		Reports: ReportsConfig{
			Cron:        "0 9 * * *",
			WindowHours: 24,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the JSON config at path, applies .env and process
// environment overrides, and returns defaults when the file is absent.
// Validation is the caller's responsibility so onboarding can save an
// incomplete template.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config is runnable. Called once at startup;
// any error here aborts the process before polling begins.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxInputChars <= 0 {
		return fmt.Errorf("llm.max_input_chars must be positive, got %d", c.LLM.MaxInputChars)
	}
	t := c.Moderation.ConfidenceThreshold
	if t < 0 || t > 1 {
		return fmt.Errorf("moderation.confidence_threshold must be in [0,1], got %v", t)
	}
	if c.Moderation.NotifyTTLSeconds < 0 {
		return fmt.Errorf("moderation.notify_ttl_seconds must not be negative, got %d", c.Moderation.NotifyTTLSeconds)
	}
	if c.Reports.WindowHours <= 0 {
		return fmt.Errorf("reports.window_hours must be positive, got %d", c.Reports.WindowHours)
	}
	return nil
}

// SpamPromptTemplate returns the configured classification prompt,
// falling back to the built-in default.
func (c *LLMConfig) SpamPromptTemplate() string {
	if c.Prompt != "" {
		return c.Prompt
	}
	return SpamPrompt
}

// UsernamePromptTemplate returns the configured username screening prompt,
// falling back to the built-in default.
func (c *LLMConfig) UsernamePromptTemplate() string {
	if c.UsernamePrompt != "" {
		return c.UsernamePrompt
	}
	return UsernamePrompt
}
