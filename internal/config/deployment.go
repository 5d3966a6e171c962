package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Deployment holds site-specific options that are not detector tuning:
// which device to open, where evidence goes, and which outputs are wired.
// Values come from the environment; command-line flags use them as their
// defaults so an explicit flag always wins.
type Deployment struct {
	Camera       string `env:"MOTIONWATCH_CAMERA" envDefault:"0"`
	ReplayDir    string `env:"MOTIONWATCH_REPLAY_DIR"`
	DBPath       string `env:"MOTIONWATCH_DB" envDefault:"motionwatch.db"`
	SnapshotDir  string `env:"MOTIONWATCH_SNAPSHOT_DIR" envDefault:"snapshots"`
	Listen       string `env:"MOTIONWATCH_LISTEN" envDefault:"localhost:8090"`
	GRPCListen   string `env:"MOTIONWATCH_GRPC_LISTEN"`
	TuningConfig string `env:"MOTIONWATCH_TUNING_CONFIG" envDefault:"config/tuning.defaults.json"`
	LogFile      string `env:"MOTIONWATCH_LOG_FILE"`

	SirenPort string `env:"MOTIONWATCH_SIREN_PORT"`
	SirenBaud int    `env:"MOTIONWATCH_SIREN_BAUD" envDefault:"9600"`

	AlertCommands []string `env:"MOTIONWATCH_ALERT_COMMANDS" envSeparator:";"`

	S3 struct {
		Endpoint  string `env:"ENDPOINT"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"motion-snapshots"`
		Secure    bool   `env:"SECURE"`
	} `envPrefix:"MOTIONWATCH_S3_"`
}

// LoadDeployment parses the deployment options from the process environment.
func LoadDeployment() (*Deployment, error) {
	return LoadDeploymentFrom(nil)
}

// LoadDeploymentFrom parses deployment options from the given environment
// map. A nil map reads the process environment.
func LoadDeploymentFrom(environ map[string]string) (*Deployment, error) {
	d := &Deployment{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(d, opts); err != nil {
		return nil, fmt.Errorf("failed to parse deployment environment: %w", err)
	}
	return d, nil
}

// ObjectStoreEnabled reports whether snapshots should be mirrored to S3.
func (d *Deployment) ObjectStoreEnabled() bool {
	return d.S3.Endpoint != ""
}
