package config

// EnvPrefix is the envconfig prefix shared by every variable.
const EnvPrefix = "chitcircle"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "CHITCIRCLE_APP_ENV"
	EnvPort     = "CHITCIRCLE_APP_PORT"
	EnvDBDSN    = "CHITCIRCLE_DB_DSN"
	EnvDBHost   = "CHITCIRCLE_DB_HOST"
	EnvDBUser   = "CHITCIRCLE_DB_USER"
	EnvDBName   = "CHITCIRCLE_DB_NAME"
	EnvRedisURL = "CHITCIRCLE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
