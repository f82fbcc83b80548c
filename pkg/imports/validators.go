package imports

type CreateImportPayload struct {
	Path         string `json:"path" mod:"trim" validate:"required"`
	SkipOrganize bool   `json:"skip_organize"`
	TrackingMode string `json:"tracking_mode" validate:"omitempty,oneof=all new watch none"`
}
