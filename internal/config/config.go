package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DBURL     string `mapstructure:"DB_URL"`
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUser     string `mapstructure:"MQTT_USER"`
	MQTTPassword string `mapstructure:"MQTT_PASSWORD"`
	EventTopic   string `mapstructure:"EVENT_TOPIC"`
	ZigbeeTopic  string `mapstructure:"ZIGBEE_TOPIC"`
	CommandTopic string `mapstructure:"COMMAND_TOPIC"`

	RuntimeURL   string `mapstructure:"RUNTIME_URL"`
	RuntimeToken string `mapstructure:"RUNTIME_TOKEN"`

	AuthURL  string `mapstructure:"AUTH_URL"`
	KeysPath string `mapstructure:"KEYS_PATH"`

	GroupsPath      string `mapstructure:"GROUPS_PATH"`
	AutomationsPath string `mapstructure:"AUTOMATIONS_PATH"`
	RegistryPath    string `mapstructure:"REGISTRY_PATH"`

	SleepTime string `mapstructure:"SLEEP_TIME"`
	Timezone  string `mapstructure:"TIMEZONE"`
	// DryRun disables rule-file writes; validation and reloads still run.
	DryRun bool `mapstructure:"DRY_RUN"`

	HTTPPort        int    `mapstructure:"HTTP_PORT"`
	MDNSLocalName   string `mapstructure:"MDNS_LOCAL_NAME"`
	ActionsPollSpec string `mapstructure:"ACTIONS_POLL_SPEC"`

	BridgeEnabled bool   `mapstructure:"BRIDGE_ENABLED"`
	BridgeRelayWS string `mapstructure:"BRIDGE_RELAY_WS"`
}

// LoadConfig reads configuration from .env and environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("CONFIG: no .env file, using environment only")
	}

	viper.AutomaticEnv()

	viper.SetDefault("MQTT_CLIENT_ID", "hubbridge")
	viper.SetDefault("EVENT_TOPIC", "hub/event")
	viper.SetDefault("ZIGBEE_TOPIC", "zigbee2mqtt/#")
	viper.SetDefault("COMMAND_TOPIC", "hub/setState")
	viper.SetDefault("RUNTIME_URL", "http://supervisor/core/api/")
	viper.SetDefault("GROUPS_PATH", "/config/groups.yaml")
	viper.SetDefault("AUTOMATIONS_PATH", "/config/automations/hub.yaml")
	viper.SetDefault("REGISTRY_PATH", "/config/.storage/core.device_registry")
	viper.SetDefault("SLEEP_TIME", "23:00:00")
	viper.SetDefault("TIMEZONE", "Local")
	viper.SetDefault("HTTP_PORT", 4000)
	viper.SetDefault("ACTIONS_POLL_SPEC", "@every 15s")

	cfg := &Config{
		DBURL:           viper.GetString("DB_URL"),
		RedisAddr:       viper.GetString("REDIS_ADDR"),
		MQTTBroker:      viper.GetString("MQTT_BROKER"),
		MQTTClientID:    viper.GetString("MQTT_CLIENT_ID"),
		MQTTUser:        viper.GetString("MQTT_USER"),
		MQTTPassword:    viper.GetString("MQTT_PASSWORD"),
		EventTopic:      viper.GetString("EVENT_TOPIC"),
		ZigbeeTopic:     viper.GetString("ZIGBEE_TOPIC"),
		CommandTopic:    viper.GetString("COMMAND_TOPIC"),
		RuntimeURL:      viper.GetString("RUNTIME_URL"),
		RuntimeToken:    viper.GetString("RUNTIME_TOKEN"),
		AuthURL:         viper.GetString("AUTH_URL"),
		KeysPath:        viper.GetString("KEYS_PATH"),
		GroupsPath:      viper.GetString("GROUPS_PATH"),
		AutomationsPath: viper.GetString("AUTOMATIONS_PATH"),
		RegistryPath:    viper.GetString("REGISTRY_PATH"),
		SleepTime:       viper.GetString("SLEEP_TIME"),
		Timezone:        viper.GetString("TIMEZONE"),
		DryRun:          viper.GetBool("DRY_RUN"),
		HTTPPort:        viper.GetInt("HTTP_PORT"),
		MDNSLocalName:   viper.GetString("MDNS_LOCAL_NAME"),
		ActionsPollSpec: viper.GetString("ACTIONS_POLL_SPEC"),
		BridgeEnabled:   viper.GetBool("BRIDGE_ENABLED"),
		BridgeRelayWS:   viper.GetString("BRIDGE_RELAY_WS"),
	}
	return cfg, nil
}
