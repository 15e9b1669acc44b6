package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configLogging struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type configDB struct {
	Path string `yaml:"path"`
}

type configOpenAI struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty"`
	AssistantID  string `yaml:"assistant_id"`
	Model        string `yaml:"model,omitempty"`
	VisionModel  string `yaml:"vision_model,omitempty"`
	ImageModel   string `yaml:"image_model,omitempty"`
	SpeechModel  string `yaml:"speech_model,omitempty"`
	SpeechVoice  string `yaml:"speech_voice,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
}

type configTelegram struct {
	BotToken      string        `yaml:"bot_token"`
	AdminIDs      []string      `yaml:"admin_ids"`
	PollTimeout   time.Duration `yaml:"poll_timeout"`
	VoiceMaxBytes int64         `yaml:"voice_max_bytes"`
}

type configMaskedURL struct {
	Root string `yaml:"root,omitempty"`
}

type configFile struct {
	Logging   configLogging   `yaml:"logging"`
	DB        configDB        `yaml:"db"`
	OpenAI    configOpenAI    `yaml:"openai"`
	Telegram  configTelegram  `yaml:"telegram"`
	MaskedURL configMaskedURL `yaml:"masked_url,omitempty"`
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = filepath.Clean(dir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			body, err := yaml.Marshal(defaultConfig(dir))
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, body, 0o600); err != nil {
				return err
			}

			fmt.Printf("initialized %s\n", cfgPath)
			return nil
		},
	}
	return cmd
}

func defaultConfig(dir string) configFile {
	return configFile{
		Logging: configLogging{
			Level:  "info",
			Format: "text",
		},
		DB: configDB{
			Path: filepath.ToSlash(filepath.Join(dir, "bubby.db")),
		},
		OpenAI: configOpenAI{
			APIKey:      "sk-...",
			AssistantID: "asst_...",
		},
		Telegram: configTelegram{
			BotToken:      "123456:ABC-...",
			AdminIDs:      []string{},
			PollTimeout:   30 * time.Second,
			VoiceMaxBytes: 20 * 1024 * 1024,
		},
	}
}
