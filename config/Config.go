package config

type Config struct {
	Database            DatabaseConfig
	Wordpress           WordpressConfig
	Cleanup             CleanupConfig
	Security            SecurityConfig
	TechnicalParameters TechnicalParameters
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required"`
	Name     string `validate:"required"`
	Username string `validate:"required"`
	Password string `validate:"required" sensitive:"true"`
}

type WordpressConfig struct {
	TablePrefix   string `validate:"required"`
	Multisite     bool
	NetworkSiteId int64
	// ExternalObjectCache disables the database-backed transient scan and
	// delete paths entirely: with an external cache transients no longer
	// live in the relational schema.
	ExternalObjectCache bool
	// ActivePlugins lists the plugin slugs currently active on the site.
	// Tables of deactivated plugins are deliberately reported as orphaned.
	ActivePlugins []string
}

type CleanupConfig struct {
	Schedule                 string `validate:"required"`
	SafeMode                 bool
	ExecutionTimeHintSeconds int
	RevisionsEnabled         bool
	RevisionsToKeep          int `validate:"gte=0"`
	RevisionsForce           bool
	TransientsEnabled        bool
	TransientExcludePrefixes []string
	OrphanedDataEnabled      bool
	SpamCommentsEnabled      bool
	TrashEnabled             bool
	AutoCleanTrashDays       int `validate:"gte=0"`
	AutoDraftsEnabled        bool
	OptimizeTables           bool
}

type SecurityConfig struct {
	// ConfirmationSecret keys the HMAC confirmation tokens for table drops.
	ConfirmationSecret string `validate:"required,min=16" sensitive:"true"`
	RateLimitPerMinute int    `validate:"gt=0"`
}

type TechnicalParameters struct {
	InstanceId    string
	ListenAddress string `validate:"required"`
	LogLevel      string
	LogFile       string
}
