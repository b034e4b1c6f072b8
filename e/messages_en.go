package e

// This defines reusable error messages

const (
	MsgUnknownInternalServerError = "Unknown Internal Server Error"

	// migrations
	MsgMigrationFileNotFound           = "Migration file does not exist"
	MsgMigrationFileNameInvalid        = "Invalid migration file name"
	MsgMigrationFileNameVersionInvalid = "Invalid migration file name version"
	MsgMigrationRunDNE                 = "Migration run does not exist"
	MsgMigrationNotInstalled           = "Migration history table not installed"
	MsgMigrationAborted                = "Migration aborted after consecutive fatal errors"
	MsgPlanDoesNotExist                = "Migration plan does not exist"

	// sql
	MsgUnsupportedDriver = "Unsupported database driver"
)
