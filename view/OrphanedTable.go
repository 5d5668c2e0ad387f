package view

type OrphanedTableInfo struct {
	Name             string `json:"name"`
	SizeBytes        int64  `json:"sizeBytes"`
	RowCount         int64  `json:"rowCount"`
	IsShared         bool   `json:"isShared"`
	Warning          string `json:"warning,omitempty"`
	PotentialOwner   string `json:"potentialOwner,omitempty"`
	ConfirmationHash string `json:"confirmationHash"`
}

type TableDeletionResult struct {
	Success    bool   `json:"success"`
	TableName  string `json:"tableName"`
	BytesFreed int64  `json:"bytesFreed"`
	Message    string `json:"message,omitempty"`
}
