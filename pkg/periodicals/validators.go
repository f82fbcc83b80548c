package periodicals

type ListPeriodicalsQuery struct {
	Limit    int     `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Offset   int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Title    *string `query:"title" json:"title,omitempty" validate:"omitempty,max=200"`
	Language *string `query:"language" json:"language,omitempty" validate:"omitempty,max=50"`
	Year     *int    `query:"year" json:"year,omitempty" validate:"omitempty,min=1900,max=2100"`
}

type DeletePeriodicalQuery struct {
	DeleteFile bool `query:"delete_file" json:"delete_file,omitempty"`
}

type UpdatePeriodicalPayload struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Publisher *string `json:"publisher,omitempty" validate:"omitempty,max=200"`
	Language  *string `json:"language,omitempty" validate:"omitempty,max=50"`
	ISSN      *string `json:"issn,omitempty" validate:"omitempty,max=20"`
}
