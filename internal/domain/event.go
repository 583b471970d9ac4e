package domain

import "encoding/json"

// Generation event types.
const (
	EventStatus     = "status"
	EventPlan       = "plan"
	EventGenerating = "generating"
	EventFileDone   = "file_done"
	EventFileError  = "file_error"
	EventDone       = "done"
	EventError      = "error"
	EventIndexed    = "indexed"
	EventIndexError = "index_error"
)

// Event is one progress record of a project generation run.
// Only the fields relevant to Type are set; MarshalJSON emits exactly those.
type Event struct {
	Type    string
	Message string

	ProjectName string
	ProjectPath string
	Description string
	TechStack   string
	TotalFiles  int

	File  string
	Index int
	Total int
	Error string

	FilesCreated []string
	FileCount    int
	ChunkCount   int
}

// MarshalJSON renders the event with the field set of its type.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": e.Type}
	switch e.Type {
	case EventStatus, EventError, EventIndexError:
		m["message"] = e.Message
	case EventPlan:
		m["project_name"] = e.ProjectName
		m["description"] = e.Description
		m["tech_stack"] = e.TechStack
		m["total_files"] = e.TotalFiles
		m["project_path"] = e.ProjectPath
	case EventGenerating:
		m["file"] = e.File
		m["index"] = e.Index
		m["total"] = e.Total
	case EventFileDone:
		m["file"] = e.File
	case EventFileError:
		m["file"] = e.File
		m["error"] = e.Error
	case EventDone:
		files := e.FilesCreated
		if files == nil {
			files = []string{}
		}
		m["project_name"] = e.ProjectName
		m["project_path"] = e.ProjectPath
		m["description"] = e.Description
		m["files_created"] = files
		m["file_count"] = e.FileCount
	case EventIndexed:
		m["file_count"] = e.FileCount
		m["chunk_count"] = e.ChunkCount
		if e.ProjectPath != "" {
			m["project_path"] = e.ProjectPath
		}
	}
	return json.Marshal(m)
}
