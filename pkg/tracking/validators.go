package tracking

type CreateTrackingPayload struct {
	OLID             *string         `json:"olid,omitempty" validate:"omitempty,max=100"`
	Title            string          `json:"title" validate:"required,max=200"`
	Publisher        *string         `json:"publisher,omitempty" validate:"omitempty,max=200"`
	ISSN             *string         `json:"issn,omitempty" validate:"omitempty,max=20"`
	Language         *string         `json:"language,omitempty" validate:"omitempty,max=50"`
	Category         *string         `json:"category,omitempty" validate:"omitempty,oneof=Magazines Comics News Articles"`
	FirstPublishYear *int            `json:"first_publish_year,omitempty" validate:"omitempty,min=1700,max=2100"`
	TrackAllEditions bool            `json:"track_all_editions"`
	TrackNewOnly     bool            `json:"track_new_only"`
	SelectedEditions map[string]bool `json:"selected_editions,omitempty"`
	SelectedYears    []int           `json:"selected_years,omitempty" validate:"omitempty,dive,min=1900,max=2100"`
	DeleteFromClient bool            `json:"delete_from_client_on_completion"`
}

type ListTrackingQuery struct {
	Limit  int  `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=500"`
	Offset int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Active bool `query:"active" json:"active,omitempty"`
}

type UpdateTrackingPayload struct {
	Title            *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Publisher        *string          `json:"publisher,omitempty" validate:"omitempty,max=200"`
	Language         *string          `json:"language,omitempty" validate:"omitempty,max=50"`
	Category         *string          `json:"category,omitempty" validate:"omitempty,oneof=Magazines Comics News Articles"`
	TrackAllEditions *bool            `json:"track_all_editions,omitempty"`
	TrackNewOnly     *bool            `json:"track_new_only,omitempty"`
	SelectedEditions *map[string]bool `json:"selected_editions,omitempty"`
	SelectedYears    *[]int           `json:"selected_years,omitempty" validate:"omitempty,dive,min=1900,max=2100"`
	DeleteFromClient *bool            `json:"delete_from_client_on_completion,omitempty"`
}
