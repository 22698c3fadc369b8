package labelcache

// ProjectRecord is a Project known to the cache.
// Table name: projects
type ProjectRecord struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"type:varchar(250);not null;uniqueIndex:project_name"`
}

func (ProjectRecord) TableName() string { return "projects" }

// LabelRecord is one propagatable label of a Project, stored without the
// propagation prefix. Rows are removed with their project.
// Table name: project_labels
type LabelRecord struct {
	ID        uint          `gorm:"primaryKey"`
	ProjectID uint          `gorm:"not null;index:project_id"`
	Project   ProjectRecord `gorm:"constraint:OnDelete:CASCADE"`
	Key       string        `gorm:"type:varchar(250);not null"`
	Value     string        `gorm:"type:varchar(250);not null"`
}

func (LabelRecord) TableName() string { return "project_labels" }
