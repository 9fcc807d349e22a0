package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CreditChanged   string `mapstructure:"credit_changed"`
	WorkoutConsumed string `mapstructure:"workout_consumed"`
}

// BusinessConfig 业务策略配置
//
// 【重要】两个策略开关是明确的产品决策，不是实现细节：
//   - strict_missing_package=false 时，学员没有课时包也允许核销训练
//     （只标记 consumed，不产生任何账务变动）
//   - allow_negative_balance=true 时，扣课时不做余额下限检查，
//     课时数允许扣成负数（教练先上课后收费的场景）
type BusinessConfig struct {
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds"` // 到期训练扫描间隔（秒）
	SweepBatchSize       int  `mapstructure:"sweep_batch_size"`       // 单个教练单次扫描的训练数上限
	StrictMissingPackage bool `mapstructure:"strict_missing_package"` // 无课时包时核销是否报错
	AllowNegativeBalance bool `mapstructure:"allow_negative_balance"` // 课时是否允许扣成负数
	MaxRetryCount        int  `mapstructure:"max_retry_count"`        // 消息投递最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}

func setDefaults() {
	viper.SetDefault("business.sweep_interval_seconds", 60)
	viper.SetDefault("business.sweep_batch_size", 100)
	viper.SetDefault("business.strict_missing_package", false)
	viper.SetDefault("business.allow_negative_balance", true)
	viper.SetDefault("business.max_retry_count", 3)
}
