package submissions

type ListSubmissionsQuery struct {
	Limit      int      `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=500"`
	Offset     int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	TrackingID *int     `query:"tracking_id" json:"tracking_id,omitempty" validate:"omitempty,min=1"`
	Status     []string `query:"status" json:"status,omitempty" validate:"omitempty,dive,oneof=pending downloading completed failed skipped import_failed"`
}
