package storage

// Progress is the watch state of one video.
type Progress struct {
	CourseKey       string   `json:"-"`
	Path            string   `json:"path"`
	PositionSeconds float64  `json:"position"`
	DurationSeconds *float64 `json:"duration,omitempty"` // last duration reported by the player
	Completed       bool     `json:"completed"`
	UpdatedAt       int64    `json:"updated_at"` // unix milliseconds
}

// CourseState is per-course navigation state.
type CourseState struct {
	CourseKey       string         `json:"-"`
	LastWatchedPath string         `json:"last_watched_path,omitempty"`
	CustomOrder     map[string]int `json:"custom_order,omitempty"` // path -> rank
	UpdatedAt       int64          `json:"updated_at"`
}

// DurationCache is a persisted duration map for one course.
type DurationCache struct {
	CourseKey     string              `json:"-"`
	StructureHash string              `json:"structure_hash"`
	Durations     map[string]*float64 `json:"durations"`
	SavedAt       int64               `json:"saved_at"` // unix milliseconds
}
