package config

// SecretsConfig selects an additional credential source. The process
// environment is always consulted first.
type SecretsConfig struct {
	// Provider is "" (environment only) or "aws".
	Provider string `yaml:"provider"`

	// SecretID names the AWS Secrets Manager secret holding a flat JSON object.
	SecretID string `yaml:"secret_id"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}
