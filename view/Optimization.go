package view

type TableOptimizationInfo struct {
	Name      string `json:"name"`
	Engine    string `json:"engine"`
	SizeBytes int64  `json:"sizeBytes"`
	Overhead  int64  `json:"overhead"`
	IsLarge   bool   `json:"isLarge"`
}

type OptimizationResult struct {
	TableName  string `json:"tableName"`
	Success    bool   `json:"success"`
	SizeBefore int64  `json:"sizeBefore"`
	SizeAfter  int64  `json:"sizeAfter"`
	BytesSaved int64  `json:"bytesSaved"`
	Message    string `json:"message,omitempty"`
}

type BulkOptimizationResult struct {
	Optimized  int                  `json:"optimized"`
	Failed     int                  `json:"failed"`
	BytesSaved int64                `json:"bytesSaved"`
	Tables     []OptimizationResult `json:"tables"`
}

// OptimizeProgressCallback is invoked before each table is processed.
type OptimizeProgressCallback func(current int, total int, tableName string)
