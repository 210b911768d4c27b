package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "todoai"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage todoai configuration.

Running bare 'todoai config' is the same as 'todoai config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# todoai configuration
# See: todoai config show (for effective values and sources)

# State/data directory (default: ~/.config/todoai)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/todoai/todoai.db)
# db_path: {{ .DBPath }}

store:
  # Backend: "sqlite" or "mongo"
  driver: "{{ .StoreDriver }}"

mongo:
  # Connection string, used when store.driver is "mongo"
  uri: "{{ .MongoURI }}"
  database: "{{ .MongoDatabase }}"

# AI providers. A provider is enabled when its API key is set here or in
# ANTHROPIC_API_KEY / OPENAI_API_KEY.
anthropic:
  # api_key: ""
  model: "{{ .AnthropicModel }}"

openai:
  # api_key: ""
  model: "{{ .OpenAIModel }}"

ai:
  # Per-request timeout for provider calls
  timeout: {{ .AITimeout }}

# HTTP port for 'todoai serve'
port: {{ .Port }}

reminders:
  enabled: {{ .RemindersEnabled }}
  # How often the scheduler re-reads the task list
  interval: {{ .RemindersInterval }}

log:
  # "text" or "json"
  format: "{{ .LogFormat }}"
  level: "{{ .LogLevel }}"
`

type configTemplateData struct {
	StateDir          string
	DBPath            string
	StoreDriver       string
	MongoURI          string
	MongoDatabase     string
	AnthropicModel    string
	OpenAIModel       string
	AITimeout         string
	Port              int
	RemindersEnabled  bool
	RemindersInterval string
	LogFormat         string
	LogLevel          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		StoreDriver:       viper.GetString("store.driver"),
		MongoURI:          viper.GetString("mongo.uri"),
		MongoDatabase:     viper.GetString("mongo.database"),
		AnthropicModel:    viper.GetString("anthropic.model"),
		OpenAIModel:       viper.GetString("openai.model"),
		AITimeout:         viper.GetDuration("ai.timeout").String(),
		Port:              viper.GetInt("port"),
		RemindersEnabled:  viper.GetBool("reminders.enabled"),
		RemindersInterval: viper.GetDuration("reminders.interval").String(),
		LogFormat:         viper.GetString("log.format"),
		LogLevel:          viper.GetString("log.level"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "TODOAI_STATE_DIR"},
	{Key: "db_path", EnvVar: "TODOAI_DB_PATH"},
	{Key: "store.driver", EnvVar: "TODOAI_STORE_DRIVER"},
	{Key: "mongo.uri", EnvVar: "TODOAI_MONGO_URI", Secret: true},
	{Key: "mongo.database", EnvVar: "TODOAI_MONGO_DATABASE"},
	{Key: "anthropic.api_key", EnvVar: "TODOAI_ANTHROPIC_API_KEY", Secret: true},
	{Key: "anthropic.model", EnvVar: "TODOAI_ANTHROPIC_MODEL"},
	{Key: "anthropic.base_url", EnvVar: "TODOAI_ANTHROPIC_BASE_URL"},
	{Key: "openai.api_key", EnvVar: "TODOAI_OPENAI_API_KEY", Secret: true},
	{Key: "openai.model", EnvVar: "TODOAI_OPENAI_MODEL"},
	{Key: "openai.base_url", EnvVar: "TODOAI_OPENAI_BASE_URL"},
	{Key: "ai.timeout", EnvVar: "TODOAI_AI_TIMEOUT"},
	{Key: "port", EnvVar: "TODOAI_PORT"},
	{Key: "reminders.enabled", EnvVar: "TODOAI_REMINDERS_ENABLED"},
	{Key: "reminders.interval", EnvVar: "TODOAI_REMINDERS_INTERVAL"},
	{Key: "log.format", EnvVar: "TODOAI_LOG_FORMAT"},
	{Key: "log.level", EnvVar: "TODOAI_LOG_LEVEL"},
}

// displayValue masks secrets, keeping the last four characters.
func displayValue(k configKeyInfo) string {
	val := fmt.Sprint(viper.Get(k.Key))
	if !k.Secret || val == "" {
		return val
	}
	if len(val) <= 4 {
		return "****"
	}
	return "****" + val[len(val)-4:]
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-20s %s  %s\n", k.Key, displayValue(k), source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'todoai config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
