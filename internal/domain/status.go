package domain

// IndexStatus describes what is currently indexed.
type IndexStatus struct {
	Indexed     bool   `json:"indexed"`
	ProjectName string `json:"project_name"`
	ProjectPath string `json:"project_path"`
	FileCount   int    `json:"file_count"`
	ChunkCount  int    `json:"chunk_count"`
}
