package exception

// Validation errors, concurrency conflicts and rate limiting carry distinct
// codes so that callers can tell a bad request from a retry-later condition.
const (
	InvalidTableName    = "2100"
	InvalidTableNameMsg = "table name $table contains disallowed characters"

	InvalidParameter    = "2101"
	InvalidParameterMsg = "parameter $param has invalid value"

	InvalidConfirmationHash    = "2102"
	InvalidConfirmationHashMsg = "confirmation hash does not match table $table"

	TableNotOrphaned    = "2110"
	TableNotOrphanedMsg = "table $table is not orphaned"

	TableNotPrefixed    = "2111"
	TableNotPrefixedMsg = "table $table does not belong to this installation"

	LockAlreadyHeld    = "2200"
	LockAlreadyHeldMsg = "operation $operation is already running on another instance"

	RateLimitExceeded    = "2201"
	RateLimitExceededMsg = "too many requests, retry later"

	RepairNotSupported    = "2120"
	RepairNotSupportedMsg = "storage engine $engine does not support repair"
)
